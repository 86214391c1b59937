package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/inovex/illuminatio-go/config"
	"github.com/inovex/illuminatio-go/k8sutil"
)

func TestEnsureRBACAndDaemonSetIsIdempotent(t *testing.T) {
	fake := k8sfake.NewSimpleClientset()
	client := &k8sutil.Client{Clientset: fake}
	o := &Orchestrator{Client: client, Config: config.DefaultConfig}
	ctx := context.Background()

	selector, err := o.ensureRBACAndDaemonSet(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{RoleLabel: RoleRunnerDaemonSet}, selector)

	// Running again must not fail on AlreadyExists.
	_, err = o.ensureRBACAndDaemonSet(ctx)
	require.NoError(t, err)

	ns := o.Config.RunnerNamespace
	ds, err := client.Clientset.AppsV1().DaemonSets(ns).Get(ctx, runnerDaemonSetName, metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, ds.Spec.Template.Spec.Containers, 1)
	assert.Equal(t, o.Config.RunnerImage, ds.Spec.Template.Spec.Containers[0].Image)

	sa, err := client.Clientset.CoreV1().ServiceAccounts(ns).Get(ctx, runnerServiceAccountName, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, runnerServiceAccountName, sa.Name)

	binding, err := client.Clientset.RbacV1().ClusterRoleBindings().Get(ctx, runnerBindingName, metav1.GetOptions{})
	require.NoError(t, err)
	require.Len(t, binding.Subjects, 1)
	assert.Equal(t, ns, binding.Subjects[0].Namespace)
}
