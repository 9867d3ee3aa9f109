package k8s

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Condition is a single entry of a resource's status.conditions list.
type Condition struct {
	Type    string
	Status  string
	Reason  string
	Message string
}

// Conditions reads status.conditions from an unstructured resource, skipping entries without a type.
func Conditions(resource *unstructured.Unstructured) []Condition {
	if resource == nil {
		return nil
	}

	entries, _, _ := unstructured.NestedSlice(resource.Object, "status", "conditions")

	var conditions []Condition
	for _, entry := range entries {
		values, _ := entry.(map[string]any)
		kind, _ := values["type"].(string)
		if kind == "" {
			continue
		}
		status, _ := values["status"].(string)
		reason, _ := values["reason"].(string)
		message, _ := values["message"].(string)
		conditions = append(conditions, Condition{Type: kind, Status: status, Reason: reason, Message: message})
	}

	return conditions
}

// MeetsConditions reports whether every key is present with status "True".
func MeetsConditions(resource *unstructured.Unstructured, keys ...string) bool {
	trueConditions := map[string]bool{}
	for _, condition := range Conditions(resource) {
		trueConditions[condition.Type] = condition.Status == "True"
	}

	for _, key := range keys {
		if !trueConditions[key] {
			return false
		}
	}

	return true
}
