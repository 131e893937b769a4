package provision

import (
	"context"
	"errors"
	"regexp"
	"testing"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func testProfile() ResourceProfile {
	return ResourceProfile{
		CPURequest:              "250m",
		MemoryRequest:           "500Mi",
		EphemeralStorageRequest: "1Gi",
		MemoryLimit:             "500Mi",
		EphemeralStorageLimit:   "1Gi",
	}
}

func testOptions() Options {
	return Options{
		Namespace:     "mi",
		Image:         "registry.example.com/meetbot-worker:latest",
		ConfigMapName: "mi-env",
		SecretName:    "app-secrets",
		Resources:     testProfile(),
	}
}

func TestValidQuantity(t *testing.T) {
	for _, ok := range []string{"250m", "500Mi", "1Gi", "2", "100Ki"} {
		if !ValidQuantity(ok) {
			t.Errorf("ValidQuantity(%q) = false; want true", ok)
		}
	}
	for _, bad := range []string{"", "abc", "12xyz", "1..5Gi"} {
		if ValidQuantity(bad) {
			t.Errorf("ValidQuantity(%q) = true; want false", bad)
		}
	}
}

func TestNewPodProvisioner_RejectsBadQuantities(t *testing.T) {
	opts := testOptions()
	opts.Resources.MemoryLimit = "lots"

	_, err := NewPodProvisioner(fake.NewSimpleClientset(), opts)
	if !errors.Is(err, ErrInvalidResourceQuantity) {
		t.Fatalf("err = %v; want ErrInvalidResourceQuantity", err)
	}
}

func TestWorkerName_FormatAndUniqueness(t *testing.T) {
	re := regexp.MustCompile(`^bot-42-[0-9a-f]{8}$`)
	a := WorkerName("42")
	b := WorkerName("42")
	if !re.MatchString(a) || !re.MatchString(b) {
		t.Fatalf("unexpected name format: %q / %q", a, b)
	}
	if a == b {
		t.Fatalf("consecutive names collided: %q", a)
	}
}

func TestProvision_BuildsExpectedPod(t *testing.T) {
	client := fake.NewSimpleClientset()
	p, err := NewPodProvisioner(client, testOptions())
	if err != nil {
		t.Fatalf("NewPodProvisioner: %v", err)
	}

	res := p.Provision(context.Background(), "42", "")
	if !res.Created || res.Err != "" {
		t.Fatalf("result = %+v; want created", res)
	}

	pod, err := client.CoreV1().Pods("mi").Get(context.Background(), res.Name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("pod not found: %v", err)
	}

	if pod.Spec.RestartPolicy != corev1.RestartPolicyNever {
		t.Fatalf("restart policy = %s; want Never", pod.Spec.RestartPolicy)
	}
	if g := pod.Spec.TerminationGracePeriodSeconds; g == nil || *g != 60 {
		t.Fatalf("grace period = %v; want 60", g)
	}

	c := pod.Spec.Containers[0]
	if len(c.Env) != 0 {
		t.Fatalf("inline env vars defined: %+v", c.Env)
	}
	if len(c.EnvFrom) != 2 ||
		c.EnvFrom[0].ConfigMapRef.Name != "mi-env" ||
		c.EnvFrom[1].SecretRef.Name != "app-secrets" {
		t.Fatalf("envFrom = %+v; want configmap + secret references", c.EnvFrom)
	}

	if cpu := c.Resources.Requests.Cpu().String(); cpu != "250m" {
		t.Fatalf("cpu request = %s", cpu)
	}
	if mem := c.Resources.Limits.Memory().String(); mem != "500Mi" {
		t.Fatalf("memory limit = %s", mem)
	}

	if len(pod.Spec.Tolerations) != 2 {
		t.Fatalf("tolerations = %+v", pod.Spec.Tolerations)
	}
	for _, tol := range pod.Spec.Tolerations {
		if tol.TolerationSeconds == nil || *tol.TolerationSeconds != 900 {
			t.Fatalf("toleration seconds = %v; want 900", tol.TolerationSeconds)
		}
	}
}

func TestProvision_DuplicateIsNotAFailure(t *testing.T) {
	client := fake.NewSimpleClientset()
	p, err := NewPodProvisioner(client, testOptions())
	if err != nil {
		t.Fatalf("NewPodProvisioner: %v", err)
	}

	first := p.Provision(context.Background(), "7", "bot-7-deadbeef")
	if !first.Created {
		t.Fatalf("first provision: %+v", first)
	}
	second := p.Provision(context.Background(), "7", "bot-7-deadbeef")
	if second.Created || second.Err != "" {
		t.Fatalf("duplicate provision = %+v; want created=false without error", second)
	}
}

func TestProvision_SubstrateErrorCapturedAsData(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("create", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("quota exceeded")
	})
	p, err := NewPodProvisioner(client, testOptions())
	if err != nil {
		t.Fatalf("NewPodProvisioner: %v", err)
	}

	res := p.Provision(context.Background(), "9", "")
	if res.Created {
		t.Fatal("created despite substrate error")
	}
	if res.Err == "" || res.Name == "" {
		t.Fatalf("result = %+v; want captured error with worker name", res)
	}
}

func TestTerminate(t *testing.T) {
	client := fake.NewSimpleClientset()
	p, err := NewPodProvisioner(client, testOptions())
	if err != nil {
		t.Fatalf("NewPodProvisioner: %v", err)
	}

	res := p.Provision(context.Background(), "11", "")
	if !res.Created {
		t.Fatalf("provision: %+v", res)
	}

	deleted, err := p.Terminate(context.Background(), res.Name)
	if err != nil || !deleted {
		t.Fatalf("Terminate = (%v, %v); want deleted", deleted, err)
	}

	// Deleting again surfaces not-found; callers decide how to treat it.
	deleted, err = p.Terminate(context.Background(), res.Name)
	if deleted || !apierrors.IsNotFound(err) {
		t.Fatalf("second Terminate = (%v, %v); want not-found", deleted, err)
	}
}
