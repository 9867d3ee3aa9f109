package autopilot

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/autopilot/internal/text"
)

// The views below project a resource onto the fields autopilot manages, so that defaults
// filled in by the API server do not show up as drift.

type containerView struct {
	Image    string            `yaml:"image"`
	Ports    []int32           `yaml:"ports"`
	Requests map[string]string `yaml:"requests,omitempty"`
	Limits   map[string]string `yaml:"limits,omitempty"`
}

type deploymentSpecView struct {
	Selector   map[string]string `yaml:"selector"`
	Containers []containerView   `yaml:"containers"`
}

func deploymentView(deployment *appsv1.Deployment) deploymentSpecView {
	view := deploymentSpecView{}
	if deployment.Spec.Selector != nil {
		view.Selector = deployment.Spec.Selector.MatchLabels
	}

	for _, container := range deployment.Spec.Template.Spec.Containers {
		cv := containerView{
			Image:    container.Image,
			Requests: quantities(container.Resources.Requests),
			Limits:   quantities(container.Resources.Limits),
		}
		for _, port := range container.Ports {
			cv.Ports = append(cv.Ports, port.ContainerPort)
		}
		view.Containers = append(view.Containers, cv)
	}

	return view
}

func quantities(list corev1.ResourceList) map[string]string {
	if len(list) == 0 {
		return nil
	}
	result := make(map[string]string, len(list))
	for name, quantity := range list {
		result[string(name)] = quantity.String()
	}
	return result
}

type servicePortView struct {
	Port       int32  `yaml:"port"`
	TargetPort string `yaml:"targetPort"`
	Protocol   string `yaml:"protocol"`
}

type serviceSpecView struct {
	Type     string            `yaml:"type"`
	Selector map[string]string `yaml:"selector"`
	Ports    []servicePortView `yaml:"ports"`
}

func serviceView(service *corev1.Service) serviceSpecView {
	view := serviceSpecView{
		Type:     string(service.Spec.Type),
		Selector: service.Spec.Selector,
	}
	for _, port := range service.Spec.Ports {
		view.Ports = append(view.Ports, servicePortView{
			Port:       port.Port,
			TargetPort: port.TargetPort.String(),
			Protocol:   string(port.Protocol),
		})
	}
	return view
}

var scaledObjectFields = []string{"scaleTargetRef", "minReplicaCount", "maxReplicaCount", "triggers"}

func scaledObjectView(resource *unstructured.Unstructured) map[string]any {
	spec, _, _ := unstructured.NestedMap(resource.Object, "spec")

	view := make(map[string]any, len(scaledObjectFields))
	for _, field := range scaledObjectFields {
		if value, ok := spec[field]; ok {
			view[field] = value
		}
	}

	return view
}

// drift returns a unified diff between the configured and live projections, or an empty string
// when they match.
func drift(differ text.DiffFunc, desired, live any) (string, error) {
	expected, err := text.ToYamlFile("configured", desired)
	if err != nil {
		return "", err
	}
	actual, err := text.ToYamlFile("live", live)
	if err != nil {
		return "", err
	}
	return differ(expected, actual), nil
}
