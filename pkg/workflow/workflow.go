// Package workflow sequences the avatar pipeline for one subject:
// upload (create, upload images, start fitting) and download (poll
// status, convert measurements, write them to disk).
package workflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	configpkg "github.com/avatarlab/fitcli/pkg/config"
	loggerpkg "github.com/avatarlab/fitcli/pkg/logger"
	"github.com/avatarlab/fitcli/pkg/measure"
	"github.com/avatarlab/fitcli/pkg/meshcapade"
	"github.com/avatarlab/fitcli/pkg/subject"
)

// Runner holds the clients needed to run subject workflows.
type Runner struct {
	cfg    configpkg.Config
	client *meshcapade.Client
	logger loggerpkg.Logger
}

// Option configures optional runtime dependencies for Runner.
type Option func(*runnerDeps)

type runnerDeps struct {
	logger     loggerpkg.Logger
	httpClient *http.Client
	tokens     meshcapade.TokenProvider
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) Option {
	return func(d *runnerDeps) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithHTTPClient injects the HTTP client used for all requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *runnerDeps) {
		if hc != nil {
			d.httpClient = hc
		}
	}
}

// WithTokenProvider replaces the password-grant token source.
func WithTokenProvider(tp meshcapade.TokenProvider) Option {
	return func(d *runnerDeps) {
		if tp != nil {
			d.tokens = tp
		}
	}
}

// New builds a Runner from configuration. Missing credentials fail
// here, before any network client is constructed.
func New(cfg configpkg.Config, opts ...Option) (*Runner, error) {
	cfg = configpkg.Normalize(cfg)
	if err := configpkg.Validate(cfg); err != nil {
		return nil, err
	}

	deps := runnerDeps{logger: loggerpkg.Nop{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}

	if deps.tokens == nil {
		deps.tokens = meshcapade.NewTokenSource(meshcapade.TokenConfig{
			AuthURL:  cfg.AuthURL,
			Realm:    cfg.Realm,
			ClientID: cfg.ClientID,
			Username: cfg.Username,
			Password: cfg.Password,
		}, deps.httpClient)
	}

	clientOpts := []meshcapade.ClientOption{meshcapade.WithLogger(deps.logger)}
	if deps.httpClient != nil {
		clientOpts = append(clientOpts, meshcapade.WithHTTPClient(deps.httpClient))
	}

	return &Runner{
		cfg:    cfg,
		client: meshcapade.NewClient(cfg.APIURL, deps.tokens, clientOpts...),
		logger: deps.logger,
	}, nil
}

// Upload creates an avatar for the subject, persists the assigned ID
// into avatar.json, uploads the images in order and starts fitting.
// It fails fast; a partial upload is left as-is.
func (r *Runner) Upload(ctx context.Context, subj *subject.Subject) (string, error) {
	if len(subj.Images) == 0 {
		return "", fmt.Errorf("subject %s has no images to upload", subj.Name)
	}

	r.logger.Info("creating avatar", "subject", subj.Name)
	avatarID, err := r.client.CreateAvatar(ctx)
	if err != nil {
		return "", fmt.Errorf("create avatar: %w", err)
	}

	subj.Metadata.AvatarID = avatarID
	if err := subj.SaveMetadata(); err != nil {
		return "", fmt.Errorf("persist avatar id: %w", err)
	}
	r.logger.Info("avatar id saved", "subject", subj.Name, "avatar_id", avatarID)

	if err := r.client.UploadImages(ctx, avatarID, subj.Images); err != nil {
		return "", fmt.Errorf("upload images: %w", err)
	}
	r.logger.Info("images uploaded", "subject", subj.Name, "count", len(subj.Images))

	height := subj.Metadata.Height
	params := meshcapade.FittingParams{
		AvatarName: subj.Name,
		Gender:     subj.Metadata.Gender.String(),
		Height:     &height,
		Weight:     subj.Metadata.Weight,
	}
	if err := r.client.StartFitting(ctx, avatarID, params); err != nil {
		return "", fmt.Errorf("start fitting: %w", err)
	}
	r.logger.Info("fitting started", "subject", subj.Name, "avatar_id", avatarID)
	return avatarID, nil
}

// Status reports the avatar's current processing state.
func (r *Runner) Status(ctx context.Context, subj *subject.Subject) (meshcapade.State, error) {
	avatarID := subj.Metadata.AvatarID
	if avatarID == "" {
		return "", fmt.Errorf("subject %s has no avatar yet; upload first", subj.Name)
	}
	avatar, err := r.client.GetAvatar(ctx, avatarID)
	if err != nil {
		return "", err
	}
	return avatar.State, nil
}

// Download fetches the avatar once and, when fitting has completed,
// writes measurements.json into the subject directory, returning its
// path. A not-yet-ready avatar returns *meshcapade.NotReadyError and
// writes nothing.
func (r *Runner) Download(ctx context.Context, subj *subject.Subject) (string, error) {
	avatarID := subj.Metadata.AvatarID
	if avatarID == "" {
		return "", fmt.Errorf("subject %s has no avatar yet; upload first", subj.Name)
	}

	r.logger.Debug("checking avatar status", "subject", subj.Name, "avatar_id", avatarID)
	avatar, err := r.client.GetAvatar(ctx, avatarID)
	if err != nil {
		return "", err
	}
	if !avatar.State.Ready() {
		return "", &meshcapade.NotReadyError{State: avatar.State}
	}
	if len(avatar.Measurements) == 0 {
		return "", errors.New("avatar is ready but the response contains no measurements")
	}

	set := measure.Convert(avatar.Measurements)
	set.Extra = avatar.Extra
	path, err := set.WriteFile(subj.Dir)
	if err != nil {
		return "", err
	}
	r.logger.Info("measurements saved", "subject", subj.Name, "path", path)
	return path, nil
}
