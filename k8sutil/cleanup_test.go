package k8sutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

func labeledPod(name, level string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "illuminatio",
			Labels:    map[string]string{CleanupLabel: level},
		},
	}
}

func TestSoftCleanupOnlyRemovesAlways(t *testing.T) {
	fake := k8sfake.NewSimpleClientset(
		labeledPod("dummy-sender", CleanupAlways.String()),
		labeledPod("runner-abcde", CleanupOnRequest.String()),
	)
	c := &Client{Clientset: fake}
	cleaner := NewCleaner(c)

	require.NoError(t, cleaner.Soft(context.Background(), []string{"illuminatio"}))

	pods, err := fake.CoreV1().Pods("illuminatio").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)
	assert.Equal(t, "runner-abcde", pods.Items[0].Name)
}

func TestHardCleanupRemovesBothLevels(t *testing.T) {
	fake := k8sfake.NewSimpleClientset(
		labeledPod("dummy-sender", CleanupAlways.String()),
		labeledPod("runner-abcde", CleanupOnRequest.String()),
	)
	c := &Client{Clientset: fake}
	cleaner := NewCleaner(c)

	require.NoError(t, cleaner.Hard(context.Background(), []string{"illuminatio"}))

	pods, err := fake.CoreV1().Pods("illuminatio").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, pods.Items)
}

func TestSoftCleanupAcrossMultipleNamespaces(t *testing.T) {
	fake := k8sfake.NewSimpleClientset(
		labeledPod("dummy-sender", CleanupAlways.String()),
	)
	// labeledPod always targets "illuminatio"; add a second-namespace
	// dummy directly so the multi-namespace list is genuinely exercised.
	other := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "dummy-sender-2",
			Namespace: "role-api",
			Labels:    map[string]string{CleanupLabel: CleanupAlways.String()},
		},
	}
	require.NoError(t, fake.Tracker().Add(other))

	c := &Client{Clientset: fake}
	cleaner := NewCleaner(c)

	require.NoError(t, cleaner.Soft(context.Background(), []string{"illuminatio", "role-api"}))

	for _, ns := range []string{"illuminatio", "role-api"} {
		pods, err := fake.CoreV1().Pods(ns).List(context.Background(), metav1.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, pods.Items, "namespace %s should be clean", ns)
	}
}

func TestHardCleanupRemovesLabeledNamespaces(t *testing.T) {
	fake := k8sfake.NewSimpleClientset(
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{
			Name:   "role-api",
			Labels: map[string]string{CleanupLabel: CleanupAlways.String()},
		}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "default"}},
	)
	c := &Client{Clientset: fake}
	cleaner := NewCleaner(c)

	require.NoError(t, cleaner.Hard(context.Background(), []string{"default"}))

	_, err := fake.CoreV1().Namespaces().Get(context.Background(), "role-api", metav1.GetOptions{})
	assert.Error(t, err, "labeled namespace should have been deleted even though it wasn't in the namespaces list")

	_, err = fake.CoreV1().Namespaces().Get(context.Background(), "default", metav1.GetOptions{})
	assert.NoError(t, err, "unlabeled namespace should survive")
}
