package managed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/terakael/flowrs/internal/config"
	"github.com/terakael/flowrs/pkg/logging"
)

const (
	astronomerAPI      = "https://api.astronomer.io/platform/v1beta1"
	astronomerTokenEnv = "ASTRO_API_TOKEN"
	astronomerPageSize = 100
)

// Astronomer lists the deployments of every active organisation the API
// token can see.
type Astronomer struct {
	BaseURL string
	getenv  func(string) string
	http    *retryablehttp.Client
}

// NewAstronomer returns a discoverer for the Astronomer platform API.
func NewAstronomer() *Astronomer {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = logging.Logger("Astronomer")
	return &Astronomer{BaseURL: astronomerAPI, getenv: os.Getenv, http: rc}
}

type astroPage struct {
	TotalCount int `json:"totalCount"`
	Offset     int `json:"offset"`
	Limit      int `json:"limit"`
}

type astroOrganization struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type astroDeployment struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AirflowVersion string `json:"airflowVersion"`
	WebServerURL   string `json:"webServerUrl"`
	Status         string `json:"status"`
}

// Discover implements config.Discoverer. Organisations whose deployments
// cannot be listed are reported in the returned error; the servers of the
// others are still returned.
func (a *Astronomer) Discover(ctx context.Context) ([]config.Server, error) {
	token := a.getenv(astronomerTokenEnv)
	if token == "" {
		return nil, fmt.Errorf("%s is not set", astronomerTokenEnv)
	}

	var orgs []astroOrganization
	err := a.paginate(ctx, token, "/organizations", func(body []byte) (astroPage, int, error) {
		var resp struct {
			astroPage
			Organizations []astroOrganization `json:"organizations"`
		}
		err := json.Unmarshal(body, &resp)
		orgs = append(orgs, resp.Organizations...)
		return resp.astroPage, len(resp.Organizations), err
	})
	if err != nil {
		return nil, fmt.Errorf("listing astronomer organizations: %w", err)
	}

	var (
		servers []config.Server
		errs    []error
	)
	for _, org := range orgs {
		if org.Status != "ACTIVE" {
			continue
		}
		var deployments []astroDeployment
		err := a.paginate(ctx, token, "/organizations/"+url.PathEscape(org.ID)+"/deployments", func(body []byte) (astroPage, int, error) {
			var resp struct {
				astroPage
				Deployments []astroDeployment `json:"deployments"`
			}
			err := json.Unmarshal(body, &resp)
			deployments = append(deployments, resp.Deployments...)
			return resp.astroPage, len(resp.Deployments), err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("listing deployments of %q: %w", org.Name, err))
			continue
		}
		for _, d := range deployments {
			srv, err := astronomerServer(org, d, token)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			logging.Debug("Managed", "discovered astronomer deployment %s (%s)", srv.Name, srv.Endpoint)
			servers = append(servers, srv)
		}
	}
	logging.Info("Managed", "found %d astronomer deployments with %d errors", len(servers), len(errs))
	return servers, errors.Join(errs...)
}

func astronomerServer(org astroOrganization, d astroDeployment, token string) (config.Server, error) {
	var version string
	switch {
	case strings.HasPrefix(d.AirflowVersion, "2."):
		version = "v1"
	case strings.HasPrefix(d.AirflowVersion, "3."):
		version = "v2"
	default:
		return config.Server{}, fmt.Errorf("deployment %s/%s runs unsupported Airflow %q", org.Name, d.Name, d.AirflowVersion)
	}
	endpoint := d.WebServerURL
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return config.Server{
		Name:     org.Name + "/" + d.Name,
		Endpoint: endpoint,
		Version:  version,
		Auth:     config.Auth{Token: &config.TokenAuth{Token: token}},
	}, nil
}

// paginate fetches path page by page until the reported total is reached
// or a page comes back empty.
func (a *Astronomer) paginate(ctx context.Context, token, path string, decode func([]byte) (astroPage, int, error)) error {
	offset := 0
	for {
		u := fmt.Sprintf("%s%s?offset=%d&limit=%d", strings.TrimRight(a.BaseURL, "/"), path, offset, astronomerPageSize)
		body, err := a.get(ctx, token, u)
		if err != nil {
			return err
		}
		page, n, err := decode(body)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		if n == 0 || page.Limit == 0 {
			return nil
		}
		offset += page.Limit
		if offset >= page.TotalCount {
			return nil
		}
	}
}

func (a *Astronomer) get(ctx context.Context, token, u string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body json.RawMessage
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", u, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}
