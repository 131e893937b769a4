// Package provision creates and destroys the ephemeral compute units that
// run meeting bots. The production adapter schedules one Kubernetes pod per
// bot; tests use the fake clientset. Provisioning failures are returned as
// data inside Result, never as raised errors, so callers can treat a failed
// provision as a normal outcome with its own retry policy.
package provision

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrInvalidResourceQuantity marks a malformed resource quantity string. It
// is raised at construction time only: a bad quantity is a deployment
// misconfiguration, not a per-request condition.
var ErrInvalidResourceQuantity = errors.New("invalid resource quantity")

// terminationGraceSeconds is granted to a worker on shutdown so it can
// flush recordings and report LEFT_MEETING before the container dies.
const terminationGraceSeconds int64 = 60

// nodeFlakeToleranceSeconds keeps a worker scheduled through short node
// not-ready/unreachable blips instead of evicting it mid-meeting.
const nodeFlakeToleranceSeconds int64 = 900

// apiCallTimeout bounds every call to the compute substrate.
const apiCallTimeout = 15 * time.Second

// ValidQuantity reports whether s parses as a resource quantity such as
// "250m", "500Mi" or "1Gi".
func ValidQuantity(s string) bool {
	if s == "" {
		return false
	}
	_, err := resource.ParseQuantity(s)
	return err == nil
}

// Result is the outcome of a provisioning attempt. Err is a captured
// message rather than an error value: by the time a Result exists the
// attempt is over and the caller only decides whether to retry.
type Result struct {
	// Name is the worker name used for the attempt, set even on failure.
	Name string `json:"name"`
	// Phase is the pod phase when known ("Pending", "Running", ...).
	Phase string `json:"phase,omitempty"`
	// Created is true when this call created the unit. A duplicate request
	// against an existing unit yields Created=false with no Err.
	Created bool `json:"created"`
	// Err holds the failure message when the attempt did not succeed.
	Err string `json:"error,omitempty"`
}

// ResourceProfile carries the worker's request/limit quantities as strings.
// Construction validates every field; defaults live in the config layer.
type ResourceProfile struct {
	CPURequest              string
	MemoryRequest           string
	EphemeralStorageRequest string
	MemoryLimit             string
	EphemeralStorageLimit   string
}

// parse validates and converts the profile. The field name is carried in
// the error so operators can tell which setting is wrong.
func (p ResourceProfile) parse() (requests, limits corev1.ResourceList, err error) {
	q := func(field, val string) (resource.Quantity, error) {
		parsed, perr := resource.ParseQuantity(val)
		if perr != nil {
			return resource.Quantity{}, fmt.Errorf("%w: %s=%q", ErrInvalidResourceQuantity, field, val)
		}
		return parsed, nil
	}

	cpu, err := q("bot_cpu_request", p.CPURequest)
	if err != nil {
		return nil, nil, err
	}
	memReq, err := q("bot_memory_request", p.MemoryRequest)
	if err != nil {
		return nil, nil, err
	}
	ephReq, err := q("bot_ephemeral_storage_request", p.EphemeralStorageRequest)
	if err != nil {
		return nil, nil, err
	}
	memLim, err := q("bot_memory_limit", p.MemoryLimit)
	if err != nil {
		return nil, nil, err
	}
	ephLim, err := q("bot_ephemeral_storage_limit", p.EphemeralStorageLimit)
	if err != nil {
		return nil, nil, err
	}

	requests = corev1.ResourceList{
		corev1.ResourceCPU:              cpu,
		corev1.ResourceMemory:           memReq,
		corev1.ResourceEphemeralStorage: ephReq,
	}
	limits = corev1.ResourceList{
		corev1.ResourceMemory:           memLim,
		corev1.ResourceEphemeralStorage: ephLim,
	}
	return requests, limits, nil
}

// Options configures a PodProvisioner.
type Options struct {
	// Namespace the worker pods are scheduled into.
	Namespace string
	// Image is the worker container image reference.
	Image string
	// ConfigMapName and SecretName are the two external reference sources
	// injected wholesale into the worker environment. The provisioner never
	// reads their contents.
	ConfigMapName string
	SecretName    string
	Resources     ResourceProfile
}

// PodProvisioner schedules one pod per bot on a Kubernetes cluster.
type PodProvisioner struct {
	client    kubernetes.Interface
	namespace string
	image     string
	configMap string
	secret    string
	requests  corev1.ResourceList
	limits    corev1.ResourceList
}

// NewPodProvisioner validates the resource profile and builds the adapter.
// It fails fast with ErrInvalidResourceQuantity so a bad deployment never
// reaches request handling.
func NewPodProvisioner(client kubernetes.Interface, opts Options) (*PodProvisioner, error) {
	requests, limits, err := opts.Resources.parse()
	if err != nil {
		return nil, err
	}
	if opts.Image == "" {
		return nil, errors.New("provision: worker image reference is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("provision: namespace is required")
	}
	return &PodProvisioner{
		client:    client,
		namespace: opts.Namespace,
		image:     opts.Image,
		configMap: opts.ConfigMapName,
		secret:    opts.SecretName,
		requests:  requests,
		limits:    limits,
	}, nil
}

// WorkerName derives a collision-resistant pod name for a bot. Two calls
// with the same id yield distinct names.
func WorkerName(botID string) string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// Fall back to a time-derived suffix; uniqueness still holds in
		// practice because provisioning is not a hot path.
		return fmt.Sprintf("bot-%s-%08x", botID, time.Now().UnixNano()&0xffffffff)
	}
	return fmt.Sprintf("bot-%s-%s", botID, hex.EncodeToString(suffix))
}

// Provision schedules a worker pod for the bot. When workerName is empty a
// fresh name is derived. The returned Result captures every outcome,
// including substrate errors; this method never panics or raises.
func (p *PodProvisioner) Provision(ctx context.Context, botID, workerName string) Result {
	if workerName == "" {
		workerName = WorkerName(botID)
	}

	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	pod := p.podSpec(botID, workerName)
	created, err := p.client.CoreV1().Pods(p.namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		if apierrors.IsAlreadyExists(err) {
			// Duplicate launch attempt. The unit is there; report it
			// without treating the duplicate as a failure.
			log.Info().Str("worker", workerName).Msg("worker pod already exists")
			return Result{Name: workerName, Created: false}
		}
		log.Error().Err(err).Str("worker", workerName).Str("bot_id", botID).
			Msg("worker pod creation failed")
		return Result{Name: workerName, Created: false, Err: err.Error()}
	}

	return Result{Name: created.Name, Phase: string(created.Status.Phase), Created: true}
}

// Terminate requests deletion of a worker pod with the standard grace
// period. A not-found condition is surfaced to the caller, who may treat
// it as success when retrying an ambiguous earlier delete.
func (p *PodProvisioner) Terminate(ctx context.Context, workerName string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, apiCallTimeout)
	defer cancel()

	grace := terminationGraceSeconds
	err := p.client.CoreV1().Pods(p.namespace).Delete(ctx, workerName, metav1.DeleteOptions{
		GracePeriodSeconds: &grace,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PodProvisioner) podSpec(botID, workerName string) *corev1.Pod {
	grace := terminationGraceSeconds
	flake := nodeFlakeToleranceSeconds

	var envFrom []corev1.EnvFromSource
	if p.configMap != "" {
		envFrom = append(envFrom, corev1.EnvFromSource{
			ConfigMapRef: &corev1.ConfigMapEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: p.configMap},
			},
		})
	}
	if p.secret != "" {
		envFrom = append(envFrom, corev1.EnvFromSource{
			SecretRef: &corev1.SecretEnvSource{
				LocalObjectReference: corev1.LocalObjectReference{Name: p.secret},
			},
		})
	}

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      workerName,
			Namespace: p.namespace,
			Labels: map[string]string{
				"app":    "meetbot-worker",
				"bot-id": botID,
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy:                 corev1.RestartPolicyNever,
			TerminationGracePeriodSeconds: &grace,
			Containers: []corev1.Container{
				{
					Name:    "bot",
					Image:   p.image,
					Command: []string{"/app/meetbot-worker"},
					Args:    []string{"--bot-id", botID},
					// Environment comes exclusively from the shared config
					// and secret references; nothing is defined inline.
					EnvFrom: envFrom,
					Resources: corev1.ResourceRequirements{
						Requests: p.requests,
						Limits:   p.limits,
					},
				},
			},
			Tolerations: []corev1.Toleration{
				{
					Key:               corev1.TaintNodeNotReady,
					Operator:          corev1.TolerationOpExists,
					Effect:            corev1.TaintEffectNoExecute,
					TolerationSeconds: &flake,
				},
				{
					Key:               corev1.TaintNodeUnreachable,
					Operator:          corev1.TolerationOpExists,
					Effect:            corev1.TaintEffectNoExecute,
					TolerationSeconds: &flake,
				},
			},
		},
	}
}
