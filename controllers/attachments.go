package controllers

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/cppla/socialbbs/upload"
	"github.com/cppla/socialbbs/utils"
)

// attachments ties stored uploads to their owners, or throws them away when a handler fails after
// the Gatekeeper already accepted them.
type attachments struct {
	store    upload.Store
	registry *utils.UploadRegistry
}

func (a attachments) claim(ctx context.Context, files []upload.StoredFile, ownerType string, ownerID uint) {
	if a.registry == nil || len(files) == 0 {
		return
	}
	if err := a.registry.Claim(ctx, fileNames(files), ownerType, ownerID); err != nil {
		// the sweeper would remove these files later, so this is worth shouting about
		utils.Sugar.Errorf("claim uploads owner=%s/%d err=%v", ownerType, ownerID, err)
	}
}

func (a attachments) discard(ctx context.Context, files []upload.StoredFile) {
	a.remove(ctx, fileNames(files))
}

// remove deletes stored files by name and drops their registry rows.
func (a attachments) remove(ctx context.Context, names []string) {
	if len(names) == 0 {
		return
	}
	var errs error
	for _, name := range names {
		if err := a.store.Delete(ctx, name); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		utils.Sugar.Warnf("remove uploads: %v", errs)
	}
	if a.registry != nil {
		if err := a.registry.Forget(ctx, names); err != nil {
			utils.Sugar.Warnf("forget uploads: %v", err)
		}
	}
}

func fileNames(files []upload.StoredFile) []string {
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}
