package orchestrator

import (
	"context"

	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	runnerServiceAccountName = "illuminatio-runner"
	runnerClusterRoleName    = "illuminatio-runner-role"
	runnerBindingName        = "illuminatio-runner-binding"
	runnerDaemonSetName      = "illuminatio-runner"

	netnsHostPath     = "/var/run/netns"
	criSocketHostPath = "/run/containerd/containerd.sock"
)

// ensureRBACAndDaemonSet is P5: ensure the runner namespace, its
// service account, the cluster role binding granting it read access to
// namespaces/pods/services/config objects and write access to its
// result artifacts, and the runner daemon set itself. Returns the daemon
// set's pod label selector for P6/P7 to match against.
func (o *Orchestrator) ensureRBACAndDaemonSet(ctx context.Context) (map[string]string, error) {
	ns := o.Config.RunnerNamespace

	if err := o.ensureRunnerNamespace(ctx, ns); err != nil {
		return nil, err
	}
	if err := o.ensureServiceAccount(ctx, ns); err != nil {
		return nil, err
	}
	if err := o.ensureClusterRoleBindingForRunner(ctx, ns); err != nil {
		return nil, err
	}

	selector := map[string]string{RoleLabel: RoleRunnerDaemonSet}
	if err := o.ensureDaemonSet(ctx, ns, selector); err != nil {
		return nil, err
	}
	return selector, nil
}

func (o *Orchestrator) ensureRunnerNamespace(ctx context.Context, name string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   name,
			Labels: map[string]string{RoleLabel: RoleDaemonRunnerNS},
		},
	}
	_, err := o.Client.Clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrapf(err, "creating runner namespace %s", name)
	}
	return nil
}

func (o *Orchestrator) ensureServiceAccount(ctx context.Context, namespace string) error {
	sa := &corev1.ServiceAccount{
		ObjectMeta: metav1.ObjectMeta{
			Name:      runnerServiceAccountName,
			Namespace: namespace,
			Labels:    map[string]string{RoleLabel: RoleRunnerServiceAccount},
		},
	}
	_, err := o.Client.Clientset.CoreV1().ServiceAccounts(namespace).Create(ctx, sa, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrap(err, "creating runner service account")
	}
	return nil
}

// ensureClusterRoleBindingForRunner grants the runner's service account
// read access to namespaces/pods/services/config maps cluster-wide and
// write access to config maps, which the runner uses both for its own
// result artifacts and for reading the case plan (spec §4.4 P5).
func (o *Orchestrator) ensureClusterRoleBindingForRunner(ctx context.Context, namespace string) error {
	role := &rbacv1.ClusterRole{
		ObjectMeta: metav1.ObjectMeta{
			Name:   runnerClusterRoleName,
			Labels: map[string]string{RoleLabel: RoleRunnerRoleBinding},
		},
		Rules: []rbacv1.PolicyRule{
			{
				APIGroups: []string{""},
				Resources: []string{"namespaces", "pods", "services"},
				Verbs:     []string{"get", "list", "watch"},
			},
			{
				APIGroups: []string{""},
				Resources: []string{"configmaps"},
				Verbs:     []string{"get", "list", "watch", "create", "update", "patch"},
			},
		},
	}
	if _, err := o.Client.Clientset.RbacV1().ClusterRoles().Create(ctx, role, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrap(err, "creating runner cluster role")
	}

	binding := &rbacv1.ClusterRoleBinding{
		ObjectMeta: metav1.ObjectMeta{
			Name:   runnerBindingName,
			Labels: map[string]string{RoleLabel: RoleRunnerRoleBinding},
		},
		RoleRef: rbacv1.RoleRef{
			APIGroup: "rbac.authorization.k8s.io",
			Kind:     "ClusterRole",
			Name:     runnerClusterRoleName,
		},
		Subjects: []rbacv1.Subject{{
			Kind:      "ServiceAccount",
			Name:      runnerServiceAccountName,
			Namespace: namespace,
		}},
	}
	if _, err := o.Client.Clientset.RbacV1().ClusterRoleBindings().Create(ctx, binding, metav1.CreateOptions{}); err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrap(err, "creating runner cluster role binding")
	}
	return nil
}

// ensureDaemonSet creates the runner daemon set, whose pod template
// mounts the host network-namespace directory, the container-runtime
// socket, and the case-plan artifact (spec §4.4 P5).
func (o *Orchestrator) ensureDaemonSet(ctx context.Context, namespace string, selector map[string]string) error {
	hostPathDir := corev1.HostPathDirectory
	hostPathSocket := corev1.HostPathSocket

	ds := &appsv1.DaemonSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      runnerDaemonSetName,
			Namespace: namespace,
			Labels:    selector,
		},
		Spec: appsv1.DaemonSetSpec{
			Selector: &metav1.LabelSelector{MatchLabels: selector},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: selector},
				Spec: corev1.PodSpec{
					ServiceAccountName: runnerServiceAccountName,
					HostPID:            true,
					Containers: []corev1.Container{{
						Name:  "runner",
						Image: o.Config.RunnerImage,
						Env: []corev1.EnvVar{
							{Name: "ILLUMINATIO_RUNNER_NAMESPACE", Value: namespace},
							{Name: "ILLUMINATIO_RUNTIME_ADAPTER", Value: o.Config.RuntimeAdapter},
							{Name: "NODE_NAME", ValueFrom: &corev1.EnvVarSource{
								FieldRef: &corev1.ObjectFieldSelector{FieldPath: "spec.nodeName"},
							}},
							{Name: "POD_NAME", ValueFrom: &corev1.EnvVarSource{
								FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
							}},
						},
						SecurityContext: &corev1.SecurityContext{Privileged: boolPtr(true)},
						VolumeMounts: []corev1.VolumeMount{
							{Name: "netns", MountPath: netnsHostPath},
							{Name: "cri-socket", MountPath: criSocketHostPath},
							{Name: "case-plan", MountPath: "/etc/illuminatio"},
						},
					}},
					Volumes: []corev1.Volume{
						{Name: "netns", VolumeSource: corev1.VolumeSource{
							HostPath: &corev1.HostPathVolumeSource{Path: netnsHostPath, Type: &hostPathDir},
						}},
						{Name: "cri-socket", VolumeSource: corev1.VolumeSource{
							HostPath: &corev1.HostPathVolumeSource{Path: criSocketHostPath, Type: &hostPathSocket},
						}},
						{Name: "case-plan", VolumeSource: corev1.VolumeSource{
							ConfigMap: &corev1.ConfigMapVolumeSource{
								LocalObjectReference: corev1.LocalObjectReference{Name: CasePlanArtifactName},
							},
						}},
					},
				},
			},
		},
	}

	_, err := o.Client.Clientset.AppsV1().DaemonSets(namespace).Create(ctx, ds, metav1.CreateOptions{})
	if err != nil && !apierrors.IsAlreadyExists(err) {
		return errors.Wrap(err, "creating runner daemon set")
	}
	return nil
}
