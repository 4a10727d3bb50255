// Package resolver turns a stream URL plus profile selection into a concrete
// playback plan: either a passthrough URL or the argv of a transcoder process.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mosaic/internal/models"
	"mosaic/internal/repository"
)

// Sentinel errors returned by the resolver.
var (
	// ErrConfigurationMissing indicates the active profile or user agent
	// selection required for playback is absent.
	ErrConfigurationMissing = errors.New("playback configuration missing")

	// ErrEmptyStreamURL indicates a resolve was attempted without a source URL.
	ErrEmptyStreamURL = errors.New("stream URL is empty")

	// ErrEmptyCommand indicates a command template produced no tokens.
	ErrEmptyCommand = errors.New("command template produced no command")
)

// Resolution is the playback plan for one stream.
type Resolution struct {
	// Profile is the stream profile the plan was built from.
	Profile *models.StreamProfile

	// StreamURL is the upstream source URL.
	StreamURL string

	// UserAgent is the User-Agent value to present upstream.
	UserAgent string

	// Passthrough is true when the URL is handed to the player directly and
	// no child process is involved.
	Passthrough bool

	// Command is the child process argv for transcoding plans. Empty for
	// passthrough.
	Command []string
}

// Options selects a specific profile or user agent instead of the active one.
type Options struct {
	ProfileID   models.ULID
	UserAgentID models.ULID
}

// Resolver resolves stream URLs against the configured profiles and user agents.
type Resolver struct {
	profiles repository.StreamProfileRepository
	agents   repository.UserAgentRepository
	logger   *slog.Logger
}

// New creates a new Resolver.
func New(profiles repository.StreamProfileRepository, agents repository.UserAgentRepository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		profiles: profiles,
		agents:   agents,
		logger:   logger,
	}
}

// Resolve builds the playback plan for streamURL. With zero Options the
// active profile and active user agent are used; a missing selection is a
// ErrConfigurationMissing, never a silent fallback.
func (r *Resolver) Resolve(ctx context.Context, streamURL string, opts Options) (*Resolution, error) {
	if strings.TrimSpace(streamURL) == "" {
		return nil, ErrEmptyStreamURL
	}

	profile, err := r.lookupProfile(ctx, opts.ProfileID)
	if err != nil {
		return nil, err
	}

	agent, err := r.lookupUserAgent(ctx, opts.UserAgentID)
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Profile:     profile,
		StreamURL:   streamURL,
		UserAgent:   agent.Value,
		Passthrough: profile.Passthrough,
	}

	if profile.Passthrough {
		r.logger.DebugContext(ctx, "resolved passthrough stream",
			slog.String("profile", profile.Name),
		)
		return res, nil
	}

	command, err := BuildCommand(profile.CommandTemplate, streamURL, agent.Value)
	if err != nil {
		return nil, fmt.Errorf("building command for profile %s: %w", profile.Name, err)
	}
	res.Command = command

	r.logger.DebugContext(ctx, "resolved transcoding stream",
		slog.String("profile", profile.Name),
		slog.String("binary", command[0]),
		slog.Int("args", len(command)-1),
	)
	return res, nil
}

func (r *Resolver) lookupProfile(ctx context.Context, id models.ULID) (*models.StreamProfile, error) {
	var profile *models.StreamProfile
	var err error
	if id.IsZero() {
		profile, err = r.profiles.GetActive(ctx)
	} else {
		profile, err = r.profiles.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading stream profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("%w: no active stream profile", ErrConfigurationMissing)
	}
	return profile, nil
}

func (r *Resolver) lookupUserAgent(ctx context.Context, id models.ULID) (*models.UserAgent, error) {
	var agent *models.UserAgent
	var err error
	if id.IsZero() {
		agent, err = r.agents.GetActive(ctx)
	} else {
		agent, err = r.agents.GetByID(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user agent: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("%w: no active user agent", ErrConfigurationMissing)
	}
	return agent, nil
}

// BuildCommand expands a command template into an argv slice. The template is
// tokenized on whitespace first, then placeholders are substituted per token,
// so URLs and user agents containing spaces stay single arguments.
func BuildCommand(template, streamURL, userAgent string) ([]string, error) {
	tokens := strings.Fields(template)
	if len(tokens) == 0 {
		return nil, ErrEmptyCommand
	}

	command := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ReplaceAll(token, models.PlaceholderStreamURL, streamURL)
		token = strings.ReplaceAll(token, models.PlaceholderUserAgent, userAgent)
		command = append(command, token)
	}
	return command, nil
}
