package resource

import (
	"strconv"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/davidmdm/autopilot/internal/config"
)

const (
	ScaledObjectAPIVersion = "keda.sh/v1alpha1"
	ScaledObjectKind       = "ScaledObject"
	PrometheusTrigger      = "prometheus"
)

type ScaleTargetRef struct {
	APIVersion string `json:"apiVersion,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name"`
}

type ScaleTrigger struct {
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata"`
}

type ScaledObjectSpec struct {
	ScaleTargetRef  ScaleTargetRef `json:"scaleTargetRef"`
	MinReplicaCount int32          `json:"minReplicaCount"`
	MaxReplicaCount int32          `json:"maxReplicaCount"`
	Triggers        []ScaleTrigger `json:"triggers"`
}

type ScaledObject Resource[ScaledObjectSpec]

// FormatThreshold renders the threshold the way KEDA expects trigger metadata: a plain decimal string.
func FormatThreshold(threshold float64) string {
	return strconv.FormatFloat(threshold, 'f', -1, 64)
}

// NewScaledObject describes the KEDA scaling policy targeting the spec's deployment with a single
// prometheus trigger.
func NewScaledObject(spec config.Spec) ScaledObject {
	return ScaledObject{
		APIVersion: ScaledObjectAPIVersion,
		Kind:       ScaledObjectKind,
		Metadata: Metadata{
			Name:      spec.ScaledObjectName(),
			Namespace: spec.Namespace,
			Labels:    managedLabels(spec),
		},
		Spec: ScaledObjectSpec{
			ScaleTargetRef: ScaleTargetRef{
				APIVersion: "apps/v1",
				Kind:       "Deployment",
				Name:       spec.DeploymentName,
			},
			MinReplicaCount: spec.MinReplicas,
			MaxReplicaCount: spec.MaxReplicas,
			Triggers: []ScaleTrigger{
				{
					Type: PrometheusTrigger,
					Metadata: map[string]string{
						"serverAddress": spec.PrometheusServerAddress,
						"metricName":    spec.MetricName,
						"threshold":     FormatThreshold(spec.Threshold),
						"query":         spec.PrometheusQuery,
					},
				},
			},
		},
	}
}

// UnstructuredScaledObject is NewScaledObject in the form accepted by the dynamic client.
func UnstructuredScaledObject(spec config.Spec) (*unstructured.Unstructured, error) {
	return Resource[ScaledObjectSpec](NewScaledObject(spec)).ToUnstructured()
}
