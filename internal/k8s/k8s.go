package k8s

import (
	"context"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/version"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"
)

const (
	fieldManager = "autopilot"

	DefaultTimeout = 30 * time.Second
)

var ScaledObjectGVR = schema.GroupVersionResource{
	Group:    "keda.sh",
	Version:  "v1alpha1",
	Resource: "scaledobjects",
}

// ConnectionError reports a failure to build or reach the cluster session.
type ConnectionError struct {
	Err error
}

func (err *ConnectionError) Error() string { return "cluster connection: " + err.Err.Error() }

func (err *ConnectionError) Unwrap() error { return err.Err }

// Client is the session shared by every reconciliation and reporting step.
// It is read-only after construction.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	metrics   metricsclient.Interface
}

// NewClientFromKubeConfig builds a session from a kubeconfig file. Every request made through
// the session is bounded by timeout; a zero timeout selects DefaultTimeout.
func NewClientFromKubeConfig(path string, timeout time.Duration) (*Client, error) {
	restcfg, err := clientcmd.BuildConfigFromFlags("", path)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to build k8 config: %w", err)}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	restcfg.Timeout = timeout
	return NewClient(restcfg)
}

func NewClient(cfg *rest.Config) (*Client, error) {
	dynamicClient, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to create dynamic client component: %w", err)}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to create k8 clientset: %w", err)}
	}

	metrics, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("failed to create metrics clientset: %w", err)}
	}

	return NewClientForInterfaces(clientset, dynamicClient, metrics), nil
}

// NewClientForInterfaces assembles a session from already constructed clients.
func NewClientForInterfaces(clientset kubernetes.Interface, dynamic dynamic.Interface, metrics metricsclient.Interface) *Client {
	return &Client{
		clientset: clientset,
		dynamic:   dynamic,
		metrics:   metrics,
	}
}

// Ping verifies that the control plane is reachable and accepts our credentials.
func (client Client) Ping(ctx context.Context) (*version.Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ConnectionError{Err: err}
	}
	info, err := client.clientset.Discovery().ServerVersion()
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	return info, nil
}

// NamespaceExists lists every namespace and compares by name.
func (client Client) NamespaceExists(ctx context.Context, name string) (bool, error) {
	list, err := client.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list namespaces: %w", err)
	}
	for _, namespace := range list.Items {
		if namespace.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (client Client) CreateNamespace(ctx context.Context, name string) error {
	_, err := client.clientset.CoreV1().Namespaces().Create(
		ctx,
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}},
		metav1.CreateOptions{FieldManager: fieldManager},
	)
	return err
}

func (client Client) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	return client.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
}

func (client Client) CreateDeployment(ctx context.Context, deployment *appsv1.Deployment) error {
	_, err := client.clientset.AppsV1().
		Deployments(deployment.Namespace).
		Create(ctx, deployment, metav1.CreateOptions{FieldManager: fieldManager})
	return err
}

func (client Client) GetService(ctx context.Context, namespace, name string) (*corev1.Service, error) {
	return client.clientset.CoreV1().Services(namespace).Get(ctx, name, metav1.GetOptions{})
}

func (client Client) CreateService(ctx context.Context, service *corev1.Service) error {
	_, err := client.clientset.CoreV1().
		Services(service.Namespace).
		Create(ctx, service, metav1.CreateOptions{FieldManager: fieldManager})
	return err
}

func (client Client) GetScaledObject(ctx context.Context, namespace, name string) (*unstructured.Unstructured, error) {
	return client.dynamic.Resource(ScaledObjectGVR).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
}

func (client Client) CreateScaledObject(ctx context.Context, resource *unstructured.Unstructured) error {
	_, err := client.dynamic.
		Resource(ScaledObjectGVR).
		Namespace(resource.GetNamespace()).
		Create(ctx, resource, metav1.CreateOptions{FieldManager: fieldManager})
	return err
}

// GetPods returns pods matching a label selector in a namespace.
func (client Client) GetPods(ctx context.Context, namespace, selector string) ([]corev1.Pod, error) {
	list, err := client.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	return list.Items, nil
}

// GetPodMetrics fetches live usage from the metrics.k8s.io extension API.
func (client Client) GetPodMetrics(ctx context.Context, namespace, name string) (*metricsv1beta1.PodMetrics, error) {
	return client.metrics.MetricsV1beta1().PodMetricses(namespace).Get(ctx, name, metav1.GetOptions{})
}
