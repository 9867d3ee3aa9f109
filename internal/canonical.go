package internal

import (
	"cmp"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Canonical returns a stable dotted identifier for a resource: namespace.group.version.kind.name.
func Canonical(resource *unstructured.Unstructured) string {
	gvk := resource.GroupVersionKind()

	return strings.ToLower(strings.Join(
		[]string{
			cmp.Or(resource.GetNamespace(), "_"),
			cmp.Or(gvk.Group, "core"),
			gvk.Version,
			gvk.Kind,
			resource.GetName(),
		},
		".",
	))
}

func CanonicalNameList(resources []*unstructured.Unstructured) []string {
	result := make([]string, len(resources))
	for i, resource := range resources {
		result[i] = Canonical(resource)
	}
	return result
}
