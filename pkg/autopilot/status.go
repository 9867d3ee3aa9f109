package autopilot

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	corev1 "k8s.io/api/core/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/davidmdm/autopilot/internal"
	"github.com/davidmdm/autopilot/internal/config"
	"github.com/davidmdm/autopilot/internal/k8s"
	"github.com/davidmdm/autopilot/internal/resource"
)

// NotAvailable stands in for any value that could not be retrieved.
const NotAvailable = "N/A"

type ContainerReport struct {
	Name   string
	State  string
	CPU    string
	Memory string
}

type PodReport struct {
	Name       string
	Phase      string
	Containers []ContainerReport
}

type AutoscalerReport struct {
	Name       string
	Ready      bool
	Conditions []k8s.Condition
}

type MetricReport struct {
	Name      string
	Value     string
	Threshold string
}

type Report struct {
	Namespace  string
	Deployment string
	// Replicas and Available are zero when the deployment status does not carry them.
	Replicas   int32
	Available  int32
	Pods       []PodReport
	Autoscaler *AutoscalerReport
	Metric     MetricReport
	Warnings   []string
}

// Degraded reports whether any part of the report was incomplete or unhealthy.
func (report Report) Degraded() bool {
	return len(report.Warnings) > 0
}

// Status reads the deployment, its pods and their live usage, the ScaledObject conditions and the
// current value of the scaling metric. Only failure to read the deployment or list its pods is an
// error: everything else degrades to NotAvailable with a warning.
func (commander Commander) Status(ctx context.Context, spec config.Spec) (*Report, error) {
	defer internal.DebugTimer(ctx, "status report")()

	deployment, err := commander.k8s.GetDeployment(ctx, spec.Namespace, spec.DeploymentName)
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	report := &Report{
		Namespace:  spec.Namespace,
		Deployment: spec.DeploymentName,
		Available:  deployment.Status.AvailableReplicas,
	}
	if deployment.Spec.Replicas != nil {
		report.Replicas = *deployment.Spec.Replicas
	}

	pods, err := commander.k8s.GetPods(ctx, spec.Namespace, spec.Selector())
	if err != nil {
		return nil, err
	}

	var missingUsage int
	for _, pod := range pods {
		podReport, hasUsage := commander.podReport(ctx, pod)
		if !hasUsage {
			missingUsage++
		}
		report.Pods = append(report.Pods, podReport)
	}

	if report.Available < report.Replicas {
		report.Warnings = append(report.Warnings, fmt.Sprintf("only %d of %d replicas are available", report.Available, report.Replicas))
	}
	if missingUsage > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("resource usage unavailable for %d pod(s)", missingUsage))
	}

	if scaledObject, err := commander.k8s.GetScaledObject(ctx, spec.Namespace, spec.ScaledObjectName()); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("could not read scaledobject %s: %v", spec.ScaledObjectName(), err))
	} else {
		report.Autoscaler = &AutoscalerReport{
			Name:       spec.ScaledObjectName(),
			Ready:      k8s.MeetsConditions(scaledObject, "Ready"),
			Conditions: k8s.Conditions(scaledObject),
		}
	}

	report.Metric = MetricReport{
		Name:      spec.MetricName,
		Value:     NotAvailable,
		Threshold: resource.FormatThreshold(spec.Threshold),
	}
	if value, err := commander.probeMetric(ctx, spec); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("could not probe metric %s: %v", spec.MetricName, err))
	} else {
		report.Metric.Value = value
	}

	return report, nil
}

func (commander Commander) probeMetric(ctx context.Context, spec config.Spec) (string, error) {
	if commander.prometheus == nil {
		return "", fmt.Errorf("no metrics source configured")
	}
	querier, err := commander.prometheus(spec.PrometheusServerAddress)
	if err != nil {
		return "", err
	}
	return probe(ctx, querier, spec.PrometheusQuery)
}

// podReport describes each container declared by the pod. The boolean result is false when live
// usage could not be fetched.
func (commander Commander) podReport(ctx context.Context, pod corev1.Pod) (PodReport, bool) {
	report := PodReport{Name: pod.Name, Phase: string(pod.Status.Phase)}

	usage, err := commander.k8s.GetPodMetrics(ctx, pod.Namespace, pod.Name)
	if err != nil {
		internal.Debug(ctx).Printf("metrics for pod %s: %v\n", pod.Name, err)
		usage = &metricsv1beta1.PodMetrics{}
	}

	for _, container := range pod.Spec.Containers {
		status, _ := internal.Find(pod.Status.ContainerStatuses, func(status corev1.ContainerStatus) bool {
			return status.Name == container.Name
		})
		metrics, found := internal.Find(usage.Containers, func(metrics metricsv1beta1.ContainerMetrics) bool {
			return metrics.Name == container.Name
		})

		containerReport := ContainerReport{
			Name:   container.Name,
			State:  containerState(status.State),
			CPU:    NotAvailable,
			Memory: NotAvailable,
		}
		if found {
			if cpu, ok := metrics.Usage[corev1.ResourceCPU]; ok {
				containerReport.CPU = cpu.String()
			}
			if memory, ok := metrics.Usage[corev1.ResourceMemory]; ok {
				containerReport.Memory = memory.String()
			}
		}

		report.Containers = append(report.Containers, containerReport)
	}

	return report, err == nil
}

func containerState(state corev1.ContainerState) string {
	switch {
	case state.Running != nil:
		return "Running"
	case state.Waiting != nil:
		return withReason("Waiting", state.Waiting.Reason)
	case state.Terminated != nil:
		return withReason("Terminated", state.Terminated.Reason)
	default:
		return "Unknown"
	}
}

func withReason(state, reason string) string {
	if reason == "" {
		return state
	}
	return state + " (" + reason + ")"
}

// Render writes the human readable report to w. Warnings are not included.
func (report Report) Render(w io.Writer) {
	fmt.Fprintf(w, "deployment %s/%s: %d/%d replicas available\n", report.Namespace, report.Deployment, report.Available, report.Replicas)

	if report.Autoscaler != nil {
		conditions := make([]string, len(report.Autoscaler.Conditions))
		for i, condition := range report.Autoscaler.Conditions {
			conditions[i] = condition.Type + "=" + condition.Status
		}
		readiness := "not ready"
		if report.Autoscaler.Ready {
			readiness = "ready"
		}
		fmt.Fprintf(w, "scaledobject %s (%s): %s\n", report.Autoscaler.Name, readiness, strings.Join(conditions, " "))
	}

	fmt.Fprintf(w, "metric %s: %s (threshold %s)\n", report.Metric.Name, report.Metric.Value, report.Metric.Threshold)

	if len(report.Pods) == 0 {
		fmt.Fprintln(w, "no pods found")
		return
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)

	tbl.AppendHeader(table.Row{"pod", "phase", "container", "state", "cpu", "memory"})
	for _, pod := range report.Pods {
		for _, container := range pod.Containers {
			tbl.AppendRow(table.Row{pod.Name, pod.Phase, container.Name, container.State, container.CPU, container.Memory})
		}
	}

	fmt.Fprintln(w, tbl.Render())
}

// Print writes the report to the context's stdout and each warning once to its stderr.
func (report Report) Print(ctx context.Context) {
	report.Render(internal.Stdout(ctx))
	for _, warning := range report.Warnings {
		internal.Warnf(ctx, "%s", warning)
	}
}
