package autopilot

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/davidmdm/autopilot/internal/config"
	"github.com/davidmdm/autopilot/internal/resource"
)

// Render builds every descriptor takeoff would submit, in submission order, without contacting a cluster.
func Render(spec config.Spec) ([]*unstructured.Unstructured, error) {
	deployment, err := resource.Deployment(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build deployment: %w", err)
	}

	scaledObject, err := resource.UnstructuredScaledObject(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to build scaledobject: %w", err)
	}

	resources := []*unstructured.Unstructured{}
	for _, object := range []runtime.Object{resource.Namespace(spec), deployment, resource.Service(spec)} {
		value, err := runtime.DefaultUnstructuredConverter.ToUnstructured(object)
		if err != nil {
			return nil, fmt.Errorf("failed to convert %s: %w", object.GetObjectKind().GroupVersionKind().Kind, err)
		}
		resources = append(resources, &unstructured.Unstructured{Object: value})
	}
	resources = append(resources, scaledObject)

	for _, item := range resources {
		unstructured.RemoveNestedField(item.Object, "status")
		unstructured.RemoveNestedField(item.Object, "metadata", "creationTimestamp")
		unstructured.RemoveNestedField(item.Object, "spec", "template", "metadata", "creationTimestamp")
	}

	return resources, nil
}
