package resource

import (
	"slices"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/davidmdm/autopilot/internal/config"
)

// Deployment describes a single-replica workload with exactly one container exposing every
// configured port in order.
func Deployment(spec config.Spec) (*appsv1.Deployment, error) {
	requests, err := resourceList(spec.Resources.CPURequest, spec.Resources.MemoryRequest)
	if err != nil {
		return nil, err
	}
	limits, err := resourceList(spec.Resources.CPULimit, spec.Resources.MemoryLimit)
	if err != nil {
		return nil, err
	}

	ports := make([]corev1.ContainerPort, len(spec.Ports))
	for i, port := range slices.Clone(spec.Ports) {
		ports[i] = corev1.ContainerPort{ContainerPort: port}
	}

	return &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.DeploymentName,
			Namespace: spec.Namespace,
			Labels:    managedLabels(spec),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: ptr.To[int32](1),
			Selector: &metav1.LabelSelector{MatchLabels: spec.Labels()},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: spec.Labels()},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{
							Name:  spec.DeploymentName,
							Image: spec.Image,
							Ports: ports,
							Resources: corev1.ResourceRequirements{
								Requests: requests,
								Limits:   limits,
							},
						},
					},
				},
			},
		},
	}, nil
}

func resourceList(cpu, memory string) (corev1.ResourceList, error) {
	cpuQuantity, err := resource.ParseQuantity(cpu)
	if err != nil {
		return nil, err
	}
	memoryQuantity, err := resource.ParseQuantity(memory)
	if err != nil {
		return nil, err
	}
	return corev1.ResourceList{
		corev1.ResourceCPU:    cpuQuantity,
		corev1.ResourceMemory: memoryQuantity,
	}, nil
}
