package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-mintflow/core"
	"github.com/goliatone/go-mintflow/transport"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter transport.Adapter,
	request transport.Request,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateLedgerAPIConformance submits a deployment and reads its status
// back once. The chain list must contain the requested chain.
func ValidateLedgerAPIConformance(ctx context.Context, api core.LedgerAPI, req core.DeployContractRequest) error {
	if api == nil {
		return fmt.Errorf("devkit: ledger api is required")
	}
	chains, err := api.ListSupportedChains(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, chain := range chains {
		if strings.EqualFold(chain, req.Chain) {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("devkit: chain %q is not listed", req.Chain)
	}
	submission, err := api.SubmitContractDeployment(ctx, req)
	if err != nil {
		return err
	}
	if strings.TrimSpace(submission.OperationID) == "" {
		return fmt.Errorf("devkit: submission returned no operation id")
	}
	status, err := api.GetContractDeploymentStatus(ctx, submission.OperationID)
	if err != nil {
		return err
	}
	if !status.Status.Valid() {
		return fmt.Errorf("devkit: status %q is outside the status enum", status.Status)
	}
	return nil
}
