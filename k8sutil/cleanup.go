package k8sutil

import (
	"context"

	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// CleanupLabel marks every resource this system creates with the
// policy under which it should be torn down.
const CleanupLabel = "illuminatio-cleanup"

// CleanupLevel selects which labeled resources a cleanup pass removes.
type CleanupLevel int

const (
	// CleanupAlways marks resources removed at the end of every run
	// (dummy pods/services created to synthesize missing senders).
	CleanupAlways CleanupLevel = iota
	// CleanupOnRequest marks resources kept across runs by default and
	// only removed when a hard cleanup is explicitly requested. No
	// object this system creates carries it: the runner namespace,
	// service account, cluster role, cluster role binding and daemon set
	// (orchestrator/daemonset.go) are created without a cleanup label,
	// so neither pass removes them.
	CleanupOnRequest
)

func (l CleanupLevel) String() string {
	if l == CleanupOnRequest {
		return "on-request"
	}
	return "always"
}

// Cleaner removes resources this system created, selected by their
// CleanupLabel value.
type Cleaner struct {
	client *Client
}

// NewCleaner builds a Cleaner over client.
func NewCleaner(client *Client) *Cleaner {
	return &Cleaner{client: client}
}

// Soft runs a soft cleanup pass over namespaces: only CleanupAlways-
// labeled resources are removed. Hard additionally removes
// CleanupOnRequest resources. namespaces should list every namespace
// this run touched (the runner namespace plus any sender/target
// namespaces P2/P3 found-or-created) — mirroring
// original_source/cleaner.py's Cleaner, whose clean_up_*_in_namespaces
// methods all take a namespace list rather than a single namespace.
func (c *Cleaner) Soft(ctx context.Context, namespaces []string) error {
	return c.run(ctx, namespaces, []CleanupLevel{CleanupAlways})
}

// Hard removes both CleanupAlways and CleanupOnRequest resources.
func (c *Cleaner) Hard(ctx context.Context, namespaces []string) error {
	return c.run(ctx, namespaces, []CleanupLevel{CleanupAlways, CleanupOnRequest})
}

func (c *Cleaner) run(ctx context.Context, namespaces []string, levels []CleanupLevel) error {
	for _, level := range levels {
		sel := CleanupLabel + "=" + level.String()
		opts := metav1.ListOptions{LabelSelector: sel}
		delOpts := metav1.DeleteOptions{}

		for _, namespace := range namespaces {
			if err := c.client.Clientset.CoreV1().Pods(namespace).DeleteCollection(ctx, delOpts, opts); err != nil {
				return errors.Wrapf(err, "deleting pods in %s with cleanup level %s", namespace, level)
			}
			if err := c.deleteServices(ctx, namespace, opts); err != nil {
				return err
			}
			if err := c.client.Clientset.CoreV1().ConfigMaps(namespace).DeleteCollection(ctx, delOpts, opts); err != nil {
				return errors.Wrapf(err, "deleting config maps in %s with cleanup level %s", namespace, level)
			}
			if err := c.client.Clientset.CoreV1().ServiceAccounts(namespace).DeleteCollection(ctx, delOpts, opts); err != nil {
				return errors.Wrapf(err, "deleting service accounts in %s with cleanup level %s", namespace, level)
			}
			if err := c.client.Clientset.AppsV1().DaemonSets(namespace).DeleteCollection(ctx, delOpts, opts); err != nil {
				return errors.Wrapf(err, "deleting daemon sets in %s with cleanup level %s", namespace, level)
			}
		}

		if err := c.client.Clientset.RbacV1().ClusterRoleBindings().DeleteCollection(ctx, delOpts, opts); err != nil {
			return errors.Wrapf(err, "deleting cluster role bindings with cleanup level %s", level)
		}
		if err := c.cleanupNamespaces(ctx, opts, delOpts, level); err != nil {
			return err
		}
	}
	return nil
}

// cleanupNamespaces deletes Namespace objects carrying the current
// level's cleanup label, cluster-wide (original_source/cleaner.py's
// clean_up_namespaces): a namespace has no containing namespace of its
// own, so unlike the other resource kinds above this pass is never
// scoped to the namespaces list — it is the one place a sender's
// synthesized namespace (e.g. a canonicalized GenericClusterHost
// namespace) actually gets removed.
func (c *Cleaner) cleanupNamespaces(ctx context.Context, opts metav1.ListOptions, delOpts metav1.DeleteOptions, level CleanupLevel) error {
	list, err := c.client.Clientset.CoreV1().Namespaces().List(ctx, opts)
	if err != nil {
		return errors.Wrapf(err, "listing namespaces with cleanup level %s", level)
	}
	for _, ns := range list.Items {
		if err := c.client.Clientset.CoreV1().Namespaces().Delete(ctx, ns.Name, delOpts); err != nil {
			return errors.Wrapf(err, "deleting namespace %s with cleanup level %s", ns.Name, level)
		}
	}
	return nil
}

// deleteServices mirrors the original's per-item loop: the core API
// has no DeleteCollection for services, so list-then-delete one by
// one (original_source/cleaner.py's clean_up_services_in_namespaces).
func (c *Cleaner) deleteServices(ctx context.Context, namespace string, opts metav1.ListOptions) error {
	svcs, err := c.client.Clientset.CoreV1().Services(namespace).List(ctx, opts)
	if err != nil {
		return errors.Wrap(err, "listing services for cleanup")
	}
	for _, svc := range svcs.Items {
		if err := c.client.Clientset.CoreV1().Services(namespace).Delete(ctx, svc.Name, metav1.DeleteOptions{}); err != nil {
			return errors.Wrapf(err, "deleting service %s/%s", namespace, svc.Name)
		}
	}
	return nil
}
