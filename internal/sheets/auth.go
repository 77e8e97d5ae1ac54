package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ErrNoQuotaProject is returned when Application Default Credentials carry no
// quota project and none could be found in the local gcloud configuration.
var ErrNoQuotaProject = errors.New("no quota project for application default credentials (set quota_project_id with 'gcloud auth application-default set-quota-project' or 'gcloud config set project')")

// CredentialResolver obtains an authenticated client for the Sheets API.
// Order: explicit service account key file, then Application Default
// Credentials with a quota project taken from the credential or from gcloud.
type CredentialResolver struct {
	ServiceAccountKey string

	// FindDefault and ProjectFromCLI default to google.FindDefaultCredentials
	// and `gcloud config get-value project`.
	FindDefault    func(ctx context.Context, scopes ...string) (*google.Credentials, error)
	ProjectFromCLI func(ctx context.Context) (string, error)
}

// ClientOptions resolves credentials once and returns the options to build a
// Google API client with.
func (r *CredentialResolver) ClientOptions(ctx context.Context) ([]option.ClientOption, error) {
	if r.ServiceAccountKey != "" {
		data, err := os.ReadFile(r.ServiceAccountKey)
		switch {
		case err == nil:
			creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsReadonlyScope)
			if err != nil {
				return nil, fmt.Errorf("parse service account key %s: %w", r.ServiceAccountKey, err)
			}
			slog.InfoContext(ctx, "using service account key", "path", r.ServiceAccountKey)
			return []option.ClientOption{option.WithCredentials(creds)}, nil
		case errors.Is(err, os.ErrNotExist):
			slog.WarnContext(ctx, "service account key not found, falling back to application default credentials", "path", r.ServiceAccountKey)
		default:
			return nil, fmt.Errorf("read service account key %s: %w", r.ServiceAccountKey, err)
		}
	}

	find := r.FindDefault
	if find == nil {
		find = google.FindDefaultCredentials
	}
	creds, err := find(ctx, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("find application default credentials: %w (hint: run 'gcloud auth application-default login' or set auth.service_account_key)", err)
	}

	project, err := r.quotaProject(ctx, creds)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "using application default credentials", "quota_project", project)
	return []option.ClientOption{
		option.WithCredentials(creds),
		option.WithQuotaProject(project),
	}, nil
}

func (r *CredentialResolver) quotaProject(ctx context.Context, creds *google.Credentials) (string, error) {
	if len(creds.JSON) > 0 {
		var f struct {
			QuotaProjectID string `json:"quota_project_id"`
		}
		if err := json.Unmarshal(creds.JSON, &f); err == nil && f.QuotaProjectID != "" {
			return f.QuotaProjectID, nil
		}
	}
	if creds.ProjectID != "" {
		return creds.ProjectID, nil
	}

	cli := r.ProjectFromCLI
	if cli == nil {
		cli = gcloudProject
	}
	project, err := cli(ctx)
	if err != nil {
		slog.DebugContext(ctx, "gcloud project lookup failed", "error", err)
	}
	if project == "" {
		return "", ErrNoQuotaProject
	}
	return project, nil
}

func gcloudProject(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "gcloud", "config", "get-value", "project").Output()
	if err != nil {
		return "", fmt.Errorf("gcloud config get-value project: %w", err)
	}
	p := strings.TrimSpace(string(out))
	if p == "(unset)" {
		return "", nil
	}
	return p, nil
}

// NewService builds a Sheets API client using r.
func NewService(ctx context.Context, r *CredentialResolver, extra ...option.ClientOption) (*sheets.Service, error) {
	opts, err := r.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return svc, nil
}
