// Package actuator reads and scales the Kubernetes deployments of managed
// services and asks the placement API for re-placement.
package actuator

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/utils/ptr"

	"github.com/sirupsen/logrus"
)

// DeploymentScaler serves replica counts and CPU limits of the deployments in
// one namespace and scales them. Each service maps to the deployment of the
// same name.
type DeploymentScaler struct {
	client    kubernetes.Interface
	namespace string
}

// NewDeploymentScaler wraps an existing clientset.
func NewDeploymentScaler(client kubernetes.Interface, namespace string) *DeploymentScaler {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &DeploymentScaler{client: client, namespace: namespace}
}

// NewForKubeconfig builds a clientset from a kubeconfig path, or from the
// in-cluster service account when the path is empty.
func NewForKubeconfig(kubeconfig, namespace string) (*DeploymentScaler, error) {
	var (
		cfg *rest.Config
		err error
	)
	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("loading kubernetes config: %w", err)
	}
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	return NewDeploymentScaler(client, namespace), nil
}

// Replicas returns the desired replica count of the service's deployment.
// An unset count reads as 1, the API server default.
func (d *DeploymentScaler) Replicas(ctx context.Context, service string) (int, error) {
	dep, err := d.client.AppsV1().Deployments(d.namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("getting deployment %s/%s: %w", d.namespace, service, err)
	}
	return int(ptr.Deref(dep.Spec.Replicas, 1)), nil
}

// CPULimit returns the CPU limit, in cores, of the deployment's first container.
func (d *DeploymentScaler) CPULimit(ctx context.Context, service string) (float64, error) {
	dep, err := d.client.AppsV1().Deployments(d.namespace).Get(ctx, service, metav1.GetOptions{})
	if err != nil {
		return 0, fmt.Errorf("getting deployment %s/%s: %w", d.namespace, service, err)
	}
	containers := dep.Spec.Template.Spec.Containers
	if len(containers) == 0 {
		return 0, fmt.Errorf("deployment %s/%s has no containers", d.namespace, service)
	}
	limit := containers[0].Resources.Limits.Cpu()
	if limit.IsZero() {
		return 0, fmt.Errorf("deployment %s/%s container %s has no cpu limit", d.namespace, service, containers[0].Name)
	}
	return limit.AsApproximateFloat64(), nil
}

// Scale sets the deployment's replica count.
func (d *DeploymentScaler) Scale(ctx context.Context, service string, replicas int) error {
	if replicas < 0 {
		return fmt.Errorf("scaling %s/%s: negative replica count %d", d.namespace, service, replicas)
	}
	patch := []byte(fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas))
	_, err := d.client.AppsV1().Deployments(d.namespace).Patch(ctx, service, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("scaling %s/%s to %d replicas: %w", d.namespace, service, replicas, err)
	}
	logrus.Infof("scaled deployment %s/%s to %d replicas", d.namespace, service, replicas)
	return nil
}
