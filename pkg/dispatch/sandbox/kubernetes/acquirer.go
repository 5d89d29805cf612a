// Package kubernetes provides a sandbox.Acquirer that provisions one
// sandbox pod per analysis run through agent-sandbox SandboxClaim CRDs.
// The claim is named after the run and labeled with it, so operators can
// trace pods back to gateway runs with a label selector.
package kubernetes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/controller-runtime/pkg/client"

	sandboxv1alpha1 "sigs.k8s.io/agent-sandbox/api/v1alpha1"
	extensionsv1alpha1 "sigs.k8s.io/agent-sandbox/extensions/api/v1alpha1"

	"github.com/arvhal/causeway/pkg/dispatch/sandbox"
)

// RunIDLabel carries the gateway run ID on every SandboxClaim this
// acquirer creates.
const RunIDLabel = "causeway.dev/run-id"

const readyPollInterval = 500 * time.Millisecond

var _ sandbox.Acquirer = (*ClaimAcquirer)(nil)

// ClaimAcquirer acquires sandboxes by creating SandboxClaim CRDs. Each call
// to Acquire creates a claim for the run, waits for the corresponding
// Sandbox to become ready, and returns the Sandbox's serviceFQDN as the
// runner URL.
type ClaimAcquirer struct {
	client    client.Client
	template  string
	namespace string
	timeout   time.Duration
}

// NewClaimAcquirer creates a ClaimAcquirer from configuration.
func NewClaimAcquirer(c client.Client, template, namespace string, timeout time.Duration) *ClaimAcquirer {
	return &ClaimAcquirer{
		client:    c,
		template:  template,
		namespace: namespace,
		timeout:   timeout,
	}
}

// NewScheme returns a runtime.Scheme with the agent-sandbox types registered.
func NewScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := sandboxv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register sandbox types: %w", err)
	}
	if err := extensionsv1alpha1.AddToScheme(scheme); err != nil {
		return nil, fmt.Errorf("register extensions types: %w", err)
	}
	return scheme, nil
}

// Acquire creates a SandboxClaim for the run, waits for the Sandbox to
// become ready, and returns its URL along with a release function that
// deletes the claim.
func (a *ClaimAcquirer) Acquire(ctx context.Context, runID string) (string, func(), error) {
	claimName := claimNameFor(runID)

	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      claimName,
			Namespace: a.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "causeway",
				RunIDLabel:                     runID,
			},
		},
		Spec: extensionsv1alpha1.SandboxClaimSpec{
			TemplateRef: extensionsv1alpha1.SandboxTemplateRef{
				Name: a.template,
			},
		},
	}

	if err := a.client.Create(ctx, claim); err != nil {
		return "", nil, fmt.Errorf("create SandboxClaim %q: %w", claimName, err)
	}

	slog.Debug("created SandboxClaim",
		"name", claimName,
		"namespace", a.namespace,
		"run_id", runID,
		"template", a.template)

	serviceFQDN, err := a.waitForReady(ctx, claimName)
	if err != nil {
		a.deleteClaim(context.Background(), claimName)
		return "", nil, err
	}

	sandboxURL := fmt.Sprintf("http://%s:8080", serviceFQDN)

	release := func() {
		a.deleteClaim(context.Background(), claimName)
	}

	slog.Debug("sandbox acquired", "name", claimName, "run_id", runID, "url", sandboxURL)
	return sandboxURL, release, nil
}

// waitForReady polls the Sandbox resource until its Ready condition is True
// and the serviceFQDN is populated, or the timeout expires.
func (a *ClaimAcquirer) waitForReady(ctx context.Context, sandboxName string) (string, error) {
	var serviceFQDN string

	err := wait.PollUntilContextTimeout(ctx, readyPollInterval, a.timeout, true,
		func(ctx context.Context) (bool, error) {
			sb := &sandboxv1alpha1.Sandbox{}
			key := types.NamespacedName{Name: sandboxName, Namespace: a.namespace}
			if err := a.client.Get(ctx, key, sb); err != nil {
				// The controller may not have created it yet. Keep polling.
				slog.Debug("waiting for Sandbox", "name", sandboxName, "error", err.Error())
				return false, nil
			}
			if !isReady(sb) || sb.Status.ServiceFQDN == "" {
				return false, nil
			}
			serviceFQDN = sb.Status.ServiceFQDN
			return true, nil
		})
	if err != nil {
		return "", fmt.Errorf("waiting for Sandbox %q to become ready: %w", sandboxName, err)
	}
	return serviceFQDN, nil
}

// isReady checks if the Sandbox has a Ready condition set to True.
func isReady(sb *sandboxv1alpha1.Sandbox) bool {
	for _, c := range sb.Status.Conditions {
		if c.Type == string(sandboxv1alpha1.SandboxConditionReady) && c.Status == metav1.ConditionTrue {
			return true
		}
	}
	return false
}

// deleteClaim deletes a SandboxClaim. Errors are logged but not returned
// since this runs from release functions and cleanup paths.
func (a *ClaimAcquirer) deleteClaim(ctx context.Context, name string) {
	claim := &extensionsv1alpha1.SandboxClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: a.namespace,
		},
	}
	if err := a.client.Delete(ctx, claim); err != nil {
		slog.Warn("failed to delete SandboxClaim", "name", name, "namespace", a.namespace, "error", err.Error())
		return
	}
	slog.Debug("deleted SandboxClaim", "name", name, "namespace", a.namespace)
}

// claimNameFor derives the claim name from the run ID. Run IDs carry an
// underscore, which DNS-1123 names do not allow, so it is mapped to a
// hyphen. An empty run ID falls back to a time-based name.
func claimNameFor(runID string) string {
	if runID == "" {
		return fmt.Sprintf("causeway-adhoc-%d", time.Now().UnixNano())
	}
	return "causeway-" + strings.ReplaceAll(runID, "_", "-")
}
