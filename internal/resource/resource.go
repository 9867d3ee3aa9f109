// Package resource builds the descriptors submitted to the cluster from a deployment spec.
// Builders are pure: they never modify the spec they are given.
package resource

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/davidmdm/autopilot/internal/config"
)

const LabelManagedBy = "app.kubernetes.io/managed-by"

type Metadata struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Resource is a minimal typed envelope for kinds that are not part of the base API.
type Resource[T any] struct {
	APIVersion string   `json:"apiVersion"`
	Kind       string   `json:"kind"`
	Metadata   Metadata `json:"metadata"`
	Spec       T        `json:"spec"`
}

// ToUnstructured converts the typed envelope into the form accepted by the dynamic client.
func (resource Resource[T]) ToUnstructured() (*unstructured.Unstructured, error) {
	object, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&resource)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s to unstructured: %w", resource.Kind, err)
	}
	return &unstructured.Unstructured{Object: object}, nil
}

func managedLabels(spec config.Spec) map[string]string {
	labels := spec.Labels()
	labels[LabelManagedBy] = "autopilot"
	return labels
}

// Namespace returns the namespace descriptor for spec.Namespace.
func Namespace(spec config.Spec) *corev1.Namespace {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name: spec.Namespace,
		},
	}
}
