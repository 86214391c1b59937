package runner

import (
	"context"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/inovex/illuminatio-go/k8sutil"
)

// DockerAdapter resolves a pod's network-namespace path via the Docker
// runtime's sandbox ("pause") container, mirroring
// get_docker_network_namespace's pod-uid label filter.
type DockerAdapter struct {
	docker *client.Client
	k8s    *k8sutil.Client
}

// NewDockerAdapter builds a DockerAdapter talking to the local Docker
// daemon and using k8sClient to resolve pod UIDs.
func NewDockerAdapter(k8sClient *k8sutil.Client) (*DockerAdapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "building docker client")
	}
	return &DockerAdapter{docker: cli, k8s: k8sClient}, nil
}

// ResolveNetns implements NamespaceResolver: look up the pod's UID,
// find its single sandbox container by label filter, and inspect it
// for the sandbox network namespace path.
func (a *DockerAdapter) ResolveNetns(ctx context.Context, namespace, name string) (string, error) {
	pod, err := a.k8s.Clientset.CoreV1().Pods(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", errors.Wrapf(err, "fetching pod %s/%s", namespace, name)
	}
	if pod.UID == "" {
		return "", errors.Errorf("pod %s/%s has no uid", namespace, name)
	}

	args := filters.NewArgs(
		filters.Arg("label", "io.kubernetes.docker.type=podsandbox"),
		filters.Arg("label", "io.kubernetes.pod.uid="+string(pod.UID)),
	)
	containers, err := a.docker.ContainerList(ctx, types.ContainerListOptions{Filters: args})
	if err != nil {
		return "", errors.Wrapf(err, "listing sandbox containers for pod %s/%s", namespace, name)
	}
	if len(containers) != 1 {
		return "", errors.Errorf("expected exactly one sandbox container for pod %s/%s, found %d", namespace, name, len(containers))
	}

	inspect, err := a.docker.ContainerInspect(ctx, containers[0].ID)
	if err != nil {
		return "", errors.Wrapf(err, "inspecting sandbox container for pod %s/%s", namespace, name)
	}
	if inspect.NetworkSettings == nil || inspect.NetworkSettings.SandboxKey == "" {
		return "", errors.Errorf("sandbox container for pod %s/%s has no network namespace", namespace, name)
	}
	return inspect.NetworkSettings.SandboxKey, nil
}

// Close releases the adapter's Docker client connection.
func (a *DockerAdapter) Close() error {
	return a.docker.Close()
}
