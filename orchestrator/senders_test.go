package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8sfake "k8s.io/client-go/kubernetes/fake"

	"github.com/inovex/illuminatio-go/casegen"
	"github.com/inovex/illuminatio-go/config"
	"github.com/inovex/illuminatio-go/host"
	"github.com/inovex/illuminatio-go/k8sutil"
)

func TestHostKeyDistinguishesKindAndIdentifier(t *testing.T) {
	a := host.Cluster("default", host.Labels{"app": "web"})
	b := host.ConcreteCluster("default", "web")
	assert.NotEqual(t, hostKey(a), hostKey(b))
	assert.Equal(t, hostKey(a), hostKey(host.Cluster("default", host.Labels{"app": "web"})))
}

func TestCanonicalizeSelectorName(t *testing.T) {
	assert.Equal(t, "any", canonicalizeSelectorName(nil))
	assert.Equal(t, "tierbackend", canonicalizeSelectorName(host.Labels{"tier": "backend"}))
}

func TestCanonicalizeSelectorNameIsOrderStable(t *testing.T) {
	// Map iteration order is randomized per process; canonicalizing the
	// same multi-label selector must always produce the same name or
	// ensureSenderNamespace's find-or-create creates duplicate
	// namespaces across runs.
	labels := host.Labels{"zone": "eu", "tier": "backend", "app": "web"}
	want := canonicalizeSelectorName(labels)
	for i := 0; i < 20; i++ {
		assert.Equal(t, want, canonicalizeSelectorName(labels))
	}
	assert.Equal(t, "appwebtierbackendzoneeu", want)
}

func TestMergeLabelsOverlaysExtraOverBase(t *testing.T) {
	merged := mergeLabels(host.Labels{"app": "web"}, map[string]string{"app": "override", "extra": "1"})
	assert.Equal(t, "override", merged["app"])
	assert.Equal(t, "1", merged["extra"])
}

func TestMaterializeSendersDropsNonClusterLocalSenders(t *testing.T) {
	fake := k8sfake.NewSimpleClientset()
	client := &k8sutil.Client{Clientset: fake}
	o := &Orchestrator{Client: client, Config: config.DefaultConfig}

	cases := []casegen.Case{
		{From: host.External("1.2.3.4"), To: host.ConcreteCluster("default", "target"), Port: "80", ShouldConnect: true},
	}

	usable, mapping, err := o.materializeSenders(context.Background(), cases, Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, usable)
	assert.Empty(t, mapping)
}

func TestEnsureSenderNamespaceLabelsSynthesizedNamespaceForCleanup(t *testing.T) {
	fake := k8sfake.NewSimpleClientset()
	client := &k8sutil.Client{Clientset: fake}
	o := &Orchestrator{Client: client, Config: config.DefaultConfig}

	h := host.GenericCluster(host.Labels{"team": "payments"}, nil)
	name, err := o.ensureSenderNamespace(context.Background(), h, Snapshot{})
	require.NoError(t, err)

	ns, err := fake.CoreV1().Namespaces().Get(context.Background(), name, metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, k8sutil.CleanupAlways.String(), ns.Labels[k8sutil.CleanupLabel])
}

func TestMaterializeSendersReusesExistingPod(t *testing.T) {
	fake := k8sfake.NewSimpleClientset()
	client := &k8sutil.Client{Clientset: fake}
	o := &Orchestrator{Client: client, Config: config.DefaultConfig}

	snapshot := Snapshot{
		Namespaces: []corev1.Namespace{{ObjectMeta: metav1.ObjectMeta{Name: "default"}}},
		Pods: []corev1.Pod{{
			ObjectMeta: metav1.ObjectMeta{Name: "web-1", Namespace: "default", Labels: map[string]string{"app": "web"}},
		}},
	}

	from := host.Cluster("default", host.Labels{"app": "web"})
	cases := []casegen.Case{
		{From: from, To: host.ConcreteCluster("default", "target"), Port: "80", ShouldConnect: true},
	}

	usable, mapping, err := o.materializeSenders(context.Background(), cases, snapshot)
	require.NoError(t, err)
	require.Len(t, usable, 1)
	assert.Equal(t, "default:web-1", mapping[from.ToIdentifier()])
}
