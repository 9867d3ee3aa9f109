package resource

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	"github.com/davidmdm/autopilot/internal/config"
)

// Service forwards spec.ServicePort to the first configured container port.
// Callers must pass a spec with at least one port; config.Spec.Validate guarantees it.
func Service(spec config.Spec) *corev1.Service {
	return &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      spec.ServiceName(),
			Namespace: spec.Namespace,
			Labels:    managedLabels(spec),
		},
		Spec: corev1.ServiceSpec{
			Type:     corev1.ServiceType(spec.ServiceType),
			Selector: spec.Labels(),
			Ports: []corev1.ServicePort{
				{
					Protocol:   corev1.ProtocolTCP,
					Port:       spec.ServicePort,
					TargetPort: intstr.FromInt32(spec.Ports[0]),
				},
			},
		},
	}
}
