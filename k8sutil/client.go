// Package k8sutil wraps the client-go calls shared by the orchestrator
// and the runner: building a clientset from in-cluster or kubeconfig
// credentials, and the narrow set of list/get/upsert calls both sides
// need against pods, namespaces, services and config maps.
package k8sutil

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ReservedNamespaces are excluded from the catalog and from test-case
// target selection: testing connectivity to cluster system components
// is out of scope (spec Non-goals).
var ReservedNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-node-lease": true,
	"kube-public":     true,
}

// Client is the thin cluster-API surface the orchestrator and runner
// share.
type Client struct {
	Clientset kubernetes.Interface
}

// NewClient builds a Client from in-cluster credentials, or from the
// kubeconfig at kubeconfigPath if it is non-empty.
func NewClient(kubeconfigPath string) (*Client, error) {
	var cfg *rest.Config
	var err error

	if kubeconfigPath == "" {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, errors.Wrap(err, "loading in-cluster config")
		}
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfigPath)
		if err != nil {
			return nil, errors.Wrapf(err, "loading kubeconfig %q", kubeconfigPath)
		}
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "building clientset")
	}

	return &Client{Clientset: clientset}, nil
}

// ListNamespaces returns every namespace not in ReservedNamespaces.
func (c *Client) ListNamespaces(ctx context.Context) ([]corev1.Namespace, error) {
	list, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing namespaces")
	}

	out := make([]corev1.Namespace, 0, len(list.Items))
	for _, ns := range list.Items {
		if ReservedNamespaces[ns.Name] {
			continue
		}
		out = append(out, ns)
	}
	return out, nil
}

// ListPods returns every pod across the non-reserved namespaces.
func (c *Client) ListPods(ctx context.Context) ([]corev1.Pod, error) {
	list, err := c.Clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing pods")
	}

	out := make([]corev1.Pod, 0, len(list.Items))
	for _, pod := range list.Items {
		if ReservedNamespaces[pod.Namespace] {
			continue
		}
		out = append(out, pod)
	}
	return out, nil
}

// ListPodsOnNode returns the pods scheduled to the named node, used by
// the runner to find the pods it is responsible for probing from.
func (c *Client) ListPodsOnNode(ctx context.Context, nodeName string) ([]corev1.Pod, error) {
	list, err := c.Clientset.CoreV1().Pods("").List(ctx, metav1.ListOptions{
		FieldSelector: "spec.nodeName=" + nodeName,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing pods on node %s", nodeName)
	}
	return list.Items, nil
}

// ListServices returns every service across the non-reserved
// namespaces.
func (c *Client) ListServices(ctx context.Context) ([]corev1.Service, error) {
	list, err := c.Clientset.CoreV1().Services("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing services")
	}

	out := make([]corev1.Service, 0, len(list.Items))
	for _, svc := range list.Items {
		if ReservedNamespaces[svc.Namespace] {
			continue
		}
		out = append(out, svc)
	}
	return out, nil
}

// ListNetworkPolicies returns every declared NetworkPolicy across the
// non-reserved namespaces, the input the rule package translates into
// connectivity rules (spec §4.1).
func (c *Client) ListNetworkPolicies(ctx context.Context) ([]networkingv1.NetworkPolicy, error) {
	list, err := c.Clientset.NetworkingV1().NetworkPolicies("").List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "listing network policies")
	}

	out := make([]networkingv1.NetworkPolicy, 0, len(list.Items))
	for _, policy := range list.Items {
		if ReservedNamespaces[policy.Namespace] {
			continue
		}
		out = append(out, policy)
	}
	return out, nil
}

// UpsertConfigMap creates the config map, or replaces its Data if one
// by that name already exists in the namespace (the case-plan and
// result artifacts are each a single config map, rewritten every run).
func (c *Client) UpsertConfigMap(ctx context.Context, namespace string, cm *corev1.ConfigMap) error {
	cms := c.Clientset.CoreV1().ConfigMaps(namespace)

	_, err := cms.Create(ctx, cm, metav1.CreateOptions{})
	if err == nil {
		return nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "creating config map %s/%s", namespace, cm.Name)
	}

	existing, err := cms.Get(ctx, cm.Name, metav1.GetOptions{})
	if err != nil {
		return errors.Wrapf(err, "fetching existing config map %s/%s", namespace, cm.Name)
	}
	existing.Data = cm.Data
	existing.BinaryData = cm.BinaryData

	if _, err := cms.Update(ctx, existing, metav1.UpdateOptions{}); err != nil {
		return errors.Wrapf(err, "updating config map %s/%s", namespace, cm.Name)
	}
	return nil
}

// GetConfigMap fetches a single config map, returning (nil, nil) if it
// does not exist.
func (c *Client) GetConfigMap(ctx context.Context, namespace, name string) (*corev1.ConfigMap, error) {
	cm, err := c.Clientset.CoreV1().ConfigMaps(namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetching config map %s/%s", namespace, name)
	}
	return cm, nil
}

// ListConfigMapsWithLabel returns every config map across all
// namespaces carrying the given label value.
func (c *Client) ListConfigMapsWithLabel(ctx context.Context, key, value string) ([]corev1.ConfigMap, error) {
	list, err := c.Clientset.CoreV1().ConfigMaps("").List(ctx, metav1.ListOptions{
		LabelSelector: key + "=" + value,
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing labeled config maps")
	}
	return list.Items, nil
}
