package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/davidmdm/x/xerr"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	ServiceTypeClusterIP    = "ClusterIP"
	ServiceTypeLoadBalancer = "LoadBalancer"
	ServiceTypeNodePort     = "NodePort"
)

var serviceTypes = []string{ServiceTypeClusterIP, ServiceTypeLoadBalancer, ServiceTypeNodePort}

// Resources holds the container scheduling hints and bounds as quantity strings.
type Resources struct {
	CPURequest    string `yaml:"cpu_request"`
	MemoryRequest string `yaml:"memory_request"`
	CPULimit      string `yaml:"cpu_limit"`
	MemoryLimit   string `yaml:"memory_limit"`
}

// Spec is the deployment specification. It is loaded once and passed by value;
// nothing downstream is expected to modify it.
type Spec struct {
	CredentialsPath         string    `yaml:"kubeconfig_path"`
	Namespace               string    `yaml:"namespace"`
	DeploymentName          string    `yaml:"deployment_name"`
	Image                   string    `yaml:"image"`
	Resources               Resources `yaml:",inline"`
	Ports                   []int32   `yaml:"ports"`
	ServicePort             int32     `yaml:"service_port"`
	ServiceType             string    `yaml:"service_type"`
	MinReplicas             int32     `yaml:"hpa_min_replicas"`
	MaxReplicas             int32     `yaml:"hpa_max_replicas"`
	PrometheusServerAddress string    `yaml:"prometheus_server_address"`
	MetricName              string    `yaml:"metric_name"`
	PrometheusQuery         string    `yaml:"prometheus_query"`
	Threshold               float64   `yaml:"hpa_threshold"`
	KedaChartVersion        string    `yaml:"keda_chart_version,omitempty"`
}

// RequiredKeys lists every document key that must be present.
var RequiredKeys = []string{
	"kubeconfig_path",
	"namespace",
	"deployment_name",
	"image",
	"cpu_request",
	"memory_request",
	"cpu_limit",
	"memory_limit",
	"ports",
	"service_port",
	"service_type",
	"hpa_min_replicas",
	"hpa_max_replicas",
	"prometheus_server_address",
	"metric_name",
	"prometheus_query",
	"hpa_threshold",
}

func (spec Spec) ServiceName() string { return spec.DeploymentName + "-service" }

func (spec Spec) ScaledObjectName() string { return spec.DeploymentName + "-scaledobject" }

// Labels returns the pod labels shared by the deployment template, its selector and the service.
func (spec Spec) Labels() map[string]string {
	return map[string]string{"app": spec.DeploymentName}
}

// Selector returns Labels in label selector string form.
func (spec Spec) Selector() string { return "app=" + spec.DeploymentName }

// ConfigError reports an unreadable, malformed or semantically invalid document.
type ConfigError struct {
	Path string
	Err  error
}

func (err *ConfigError) Error() string {
	if err.Path == "" {
		return fmt.Sprintf("invalid config: %v", err.Err)
	}
	return fmt.Sprintf("invalid config %s: %v", err.Path, err.Err)
}

func (err *ConfigError) Unwrap() error { return err.Err }

// MissingFieldError names every required key absent from the document.
type MissingFieldError struct {
	Fields []string
}

func (err *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field(s): %s", strings.Join(err.Fields, ", "))
}

func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, &ConfigError{Path: path, Err: err}
	}
	spec, err := Parse(data)
	if err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Path == "" {
			cfgErr.Path = path
		}
		return Spec{}, err
	}
	return spec, nil
}

func Parse(data []byte) (Spec, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(data, &document); err != nil {
		return Spec{}, &ConfigError{Err: err}
	}
	if len(document.Content) == 0 || document.Content[0].Kind != yaml.MappingNode {
		return Spec{}, &ConfigError{Err: errors.New("document must be a key/value mapping")}
	}

	present := map[string]bool{}
	root := document.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		// A key explicitly set to null counts as absent.
		if root.Content[i+1].Tag == "!!null" {
			continue
		}
		present[root.Content[i].Value] = true
	}

	var missing []string
	for _, key := range RequiredKeys {
		if !present[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return Spec{}, &MissingFieldError{Fields: missing}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var spec Spec
	if err := decoder.Decode(&spec); err != nil && err != io.EOF {
		return Spec{}, &ConfigError{Err: err}
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, &ConfigError{Err: err}
	}

	return spec, nil
}

// Validate checks the spec for values the cluster would reject or that contradict each other.
func (spec Spec) Validate() error {
	var errs []error

	for _, field := range []struct{ Key, Value string }{
		{"kubeconfig_path", spec.CredentialsPath},
		{"namespace", spec.Namespace},
		{"deployment_name", spec.DeploymentName},
		{"image", spec.Image},
		{"service_type", spec.ServiceType},
		{"prometheus_server_address", spec.PrometheusServerAddress},
		{"metric_name", spec.MetricName},
		{"prometheus_query", spec.PrometheusQuery},
	} {
		if strings.TrimSpace(field.Value) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", field.Key))
		}
	}

	if len(spec.Ports) == 0 {
		errs = append(errs, errors.New("ports must contain at least one port"))
	}
	for _, port := range spec.Ports {
		if !validPort(port) {
			errs = append(errs, fmt.Errorf("port %d is out of range", port))
		}
	}
	if !validPort(spec.ServicePort) {
		errs = append(errs, fmt.Errorf("service_port %d is out of range", spec.ServicePort))
	}

	if spec.ServiceType != "" && !slices.Contains(serviceTypes, spec.ServiceType) {
		errs = append(errs, fmt.Errorf("service_type %q must be one of %s", spec.ServiceType, strings.Join(serviceTypes, ", ")))
	}

	if spec.MinReplicas < 0 {
		errs = append(errs, fmt.Errorf("hpa_min_replicas must not be negative: %d", spec.MinReplicas))
	}
	if spec.MaxReplicas < 1 {
		errs = append(errs, fmt.Errorf("hpa_max_replicas must be at least 1: %d", spec.MaxReplicas))
	}
	if spec.MinReplicas > spec.MaxReplicas {
		errs = append(errs, fmt.Errorf("hpa_min_replicas (%d) must not exceed hpa_max_replicas (%d)", spec.MinReplicas, spec.MaxReplicas))
	}

	errs = append(errs, validateQuantities("cpu", spec.Resources.CPURequest, spec.Resources.CPULimit)...)
	errs = append(errs, validateQuantities("memory", spec.Resources.MemoryRequest, spec.Resources.MemoryLimit)...)

	if spec.PrometheusServerAddress != "" {
		if u, err := url.Parse(spec.PrometheusServerAddress); err != nil || !u.IsAbs() || u.Host == "" {
			errs = append(errs, fmt.Errorf("prometheus_server_address %q must be an absolute url", spec.PrometheusServerAddress))
		}
	}

	if version := spec.KedaChartVersion; version != "" && !semver.IsValid("v"+strings.TrimPrefix(version, "v")) {
		errs = append(errs, fmt.Errorf("keda_chart_version %q is not a valid semantic version", version))
	}

	return xerr.MultiErrOrderedFrom("", errs...)
}

func validPort(port int32) bool { return port > 0 && port <= 65535 }

func validateQuantities(kind, request, limit string) []error {
	var errs []error

	req, err := resource.ParseQuantity(request)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s_request %q: %w", kind, request, err))
	}
	lim, err := resource.ParseQuantity(limit)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s_limit %q: %w", kind, limit, err))
	}
	if len(errs) == 0 && req.Cmp(lim) > 0 {
		errs = append(errs, fmt.Errorf("%s_request %s exceeds %s_limit %s", kind, request, kind, limit))
	}

	return errs
}
