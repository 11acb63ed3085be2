package goIdentity

import (
	"context"
	"fmt"
	"time"
)

// GetUser loads the public projection of a user: flags plus the metadata
// of every audience the user has. Secrets never appear in the view.
func (e *Engine) GetUser(ctx context.Context, username string) (*UserView, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	username = normalizeUsername(username)
	creds, err := e.users.GetCredentials(ctx, username)
	if err != nil {
		return nil, translateUserErr(err)
	}

	audiences, err := e.users.Audiences(ctx, username)
	if err != nil {
		return nil, translateUserErr(err)
	}

	metadata := map[string]map[string]string{}
	if len(audiences) > 0 {
		metadata, err = e.users.GetMetadata(ctx, username, audiences, nil)
		if err != nil {
			return nil, translateUserErr(err)
		}
	}

	return &UserView{
		Username:  username,
		Active:    creds.Active,
		Banned:    creds.Banned,
		CreatedAt: time.Unix(creds.CreatedAt, 0).UTC(),
		Metadata:  metadata,
	}, nil
}

// GetMetadata reads metadata for the named audiences, optionally narrowed
// to specific fields. No audiences means the default audience.
func (e *Engine) GetMetadata(
	ctx context.Context,
	username string,
	audiences []string,
	fields []string,
) (map[string]map[string]string, error) {
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	username = normalizeUsername(username)
	if len(audiences) == 0 {
		audiences = []string{e.config.DefaultAudience}
	}

	out, err := e.users.GetMetadata(ctx, username, audiences, fields)
	if err != nil {
		return nil, translateUserErr(err)
	}
	return out, nil
}

// UpdateMetadata applies one atomic add/remove batch within a single
// audience. A key named in both Add and Remove ends up removed.
func (e *Engine) UpdateMetadata(ctx context.Context, username, audience string, update MetadataUpdate) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	if len(update.Add) == 0 && len(update.Remove) == 0 {
		return fmt.Errorf("%w: empty metadata update", ErrValidation)
	}

	username = normalizeUsername(username)
	audience = e.audienceOrDefault(audience)

	if err := e.users.UpdateMetadata(ctx, username, audience, update.Add, update.Remove); err != nil {
		return translateUserErr(err)
	}
	return nil
}
