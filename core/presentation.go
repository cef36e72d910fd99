package core

import (
	"strings"
	"time"
)

// imageAliases are the keys display clients read the image URL from.
var imageAliases = []string{"image", "imagePreview", "imageThumbnail"}

var contractImageAliases = []string{"image", "imageUrl", "image_url"}

// PresentOperation renders a ledger record for display. The stored payload
// keeps one canonical image field. The view fans it out to every alias a
// display client may read.
func PresentOperation(record OperationRecord) map[string]any {
	view := map[string]any{
		"id":          record.ID,
		"type":        string(record.Kind),
		"status":      string(record.Status),
		"submittedAt": formatPresentedTime(record.SubmittedAt),
		"updatedAt":   formatPresentedTime(record.UpdatedAt),
	}
	data := copyAnyMap(record.Payload)
	if image := canonicalImage(data); image != "" {
		data = withImageAliases(data, image)
	}
	view["data"] = data
	return view
}

func PresentOperations(records []OperationRecord) []map[string]any {
	out := make([]map[string]any, 0, len(records))
	for _, record := range records {
		out = append(out, PresentOperation(record))
	}
	return out
}

func canonicalImage(payload map[string]any) string {
	if image, ok := payload["image"].(string); ok && strings.TrimSpace(image) != "" {
		return strings.TrimSpace(image)
	}
	if metadata, ok := payload["metadata"].(map[string]any); ok {
		if image, ok := metadata["image"].(string); ok {
			return strings.TrimSpace(image)
		}
	}
	return ""
}

func withImageAliases(payload map[string]any, image string) map[string]any {
	target := payload
	metadata, nested := payload["metadata"].(map[string]any)
	if nested {
		metadata = copyAnyMap(metadata)
		target = metadata
	}
	for _, key := range imageAliases {
		target[key] = image
	}
	contract, _ := target["contract"].(map[string]any)
	contract = copyAnyMap(contract)
	for _, key := range contractImageAliases {
		contract[key] = image
	}
	target["contract"] = contract
	if nested {
		payload["metadata"] = metadata
	}
	return payload
}

func formatPresentedTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
