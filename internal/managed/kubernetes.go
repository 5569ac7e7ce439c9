package managed

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/selection"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/pkg/logging"
)

const (
	componentLabel     = "component"
	componentWebserver = "webserver"
	componentAPIServer = "api-server"
)

// Kubernetes finds Airflow webservers (Airflow 2) and api-servers
// (Airflow 3) in a kube context. The servers are reached through the
// Kubernetes API service proxy.
type Kubernetes struct {
	Context string
	connect func(kubeContext string) (kubernetes.Interface, *rest.Config, error)
}

// NewKubernetes returns a discoverer for kubeContext, the current context
// when empty.
func NewKubernetes(kubeContext string) *Kubernetes {
	return &Kubernetes{Context: kubeContext, connect: connectKube}
}

// Discover implements config.Discoverer.
func (k *Kubernetes) Discover(ctx context.Context) ([]config.Server, error) {
	clientset, restConfig, err := k.connect(k.Context)
	if err != nil {
		return nil, err
	}

	req, err := labels.NewRequirement(componentLabel, selection.In, []string{componentWebserver, componentAPIServer})
	if err != nil {
		return nil, err
	}
	list, err := clientset.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{
		LabelSelector: labels.NewSelector().Add(*req).String(),
	})
	if err != nil {
		return nil, fmt.Errorf("listing airflow services: %w", err)
	}

	var servers []config.Server
	for _, svc := range list.Items {
		port, ok := servicePort(svc)
		if !ok {
			logging.Debug("Managed", "skipping service %s/%s without ports", svc.Namespace, svc.Name)
			continue
		}
		srv := config.Server{
			Name:     svc.Namespace + "/" + svc.Name,
			Endpoint: proxyEndpoint(restConfig.Host, svc.Namespace, svc.Name, port),
			Version:  "v1",
		}
		if svc.Labels[componentLabel] == componentAPIServer {
			srv.Version = "v2"
		}
		if restConfig.BearerToken != "" {
			srv.Auth.Token = &config.TokenAuth{Token: restConfig.BearerToken}
		}
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].Name < servers[j].Name })
	logging.Info("Managed", "found %d airflow services in kube context %q", len(servers), k.Context)
	return servers, nil
}

// servicePort prefers a port named like the Airflow UI, then the first one.
func servicePort(svc corev1.Service) (string, bool) {
	if len(svc.Spec.Ports) == 0 {
		return "", false
	}
	for _, p := range svc.Spec.Ports {
		if strings.Contains(p.Name, "airflow") || p.Name == "http" || p.Name == "api-server" {
			return portRef(p), true
		}
	}
	return portRef(svc.Spec.Ports[0]), true
}

func portRef(p corev1.ServicePort) string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprint(p.Port)
}

func proxyEndpoint(host, namespace, name, port string) string {
	return fmt.Sprintf("%s/api/v1/namespaces/%s/services/%s:%s/proxy/", strings.TrimRight(host, "/"), namespace, name, port)
}

func connectKube(kubeContext string) (kubernetes.Interface, *rest.Config, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	kubeConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	restConfig, err := kubeConfig.ClientConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get REST config for context %q: %w", kubeContext, err)
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	return clientset, restConfig, nil
}
