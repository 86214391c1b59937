package runner

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	runtimeapi "k8s.io/cri-api/pkg/apis/runtime/v1alpha2"
)

// criRuntimeSpec is the slice of a CRI sandbox's verbose "info" JSON
// this adapter needs: just enough of the OCI runtime spec to find the
// network namespace path (spec §4.5 step 3, CRI adapter).
type criRuntimeSpec struct {
	RuntimeSpec struct {
		Linux struct {
			Namespaces []struct {
				Type string `json:"type"`
				Path string `json:"path"`
			} `json:"namespaces"`
		} `json:"linux"`
	} `json:"runtimeSpec"`
}

// CRIAdapter resolves a pod's network-namespace path via a CRI runtime
// socket (containerd, cri-o, ...). Grounded on cri-api's generated
// RuntimeServiceClient, the same package containerd's own CRI plugin
// implements server-side.
type CRIAdapter struct {
	client runtimeapi.RuntimeServiceClient
	conn   *grpc.ClientConn
}

// NewCRIAdapter dials the CRI runtime socket at endpoint (e.g.
// "unix:///run/containerd/containerd.sock").
func NewCRIAdapter(ctx context.Context, endpoint string) (*CRIAdapter, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, endpoint, grpc.WithInsecure(), grpc.WithBlock()) //nolint:staticcheck
	if err != nil {
		return nil, errors.Wrapf(err, "dialing CRI runtime at %s", endpoint)
	}
	return &CRIAdapter{client: runtimeapi.NewRuntimeServiceClient(conn), conn: conn}, nil
}

// Close releases the adapter's gRPC connection.
func (a *CRIAdapter) Close() error {
	return a.conn.Close()
}

// ResolveNetns implements NamespaceResolver: find the sandbox for
// (namespace, name) and extract the path of its "network" namespace
// from the sandbox's verbose runtime spec.
func (a *CRIAdapter) ResolveNetns(ctx context.Context, namespace, name string) (string, error) {
	list, err := a.client.ListPodSandbox(ctx, &runtimeapi.ListPodSandboxRequest{
		Filter: &runtimeapi.PodSandboxFilter{
			LabelSelector: map[string]string{
				"io.kubernetes.pod.namespace": namespace,
				"io.kubernetes.pod.name":      name,
			},
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "listing pod sandboxes for %s/%s", namespace, name)
	}
	if len(list.Items) != 1 {
		return "", errors.Errorf("expected exactly one sandbox for %s/%s, found %d", namespace, name, len(list.Items))
	}

	status, err := a.client.PodSandboxStatus(ctx, &runtimeapi.PodSandboxStatusRequest{
		PodSandboxId: list.Items[0].Id,
		Verbose:      true,
	})
	if err != nil {
		return "", errors.Wrapf(err, "inspecting sandbox for %s/%s", namespace, name)
	}

	raw, ok := status.Info["info"]
	if !ok {
		return "", errors.Errorf("sandbox status for %s/%s carries no verbose info", namespace, name)
	}

	var info criRuntimeSpec
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return "", errors.Wrapf(err, "parsing sandbox runtime spec for %s/%s", namespace, name)
	}
	for _, ns := range info.RuntimeSpec.Linux.Namespaces {
		if ns.Type == "network" {
			return ns.Path, nil
		}
	}
	return "", errors.Errorf("sandbox runtime spec for %s/%s has no network namespace entry", namespace, name)
}
