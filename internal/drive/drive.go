// Package drive pulls receipt images out of the shared Google Drive
// tree. The layout is fixed: a root folder holds one folder per
// employee, each employee folder holds one folder per month, and the
// month folders hold the receipt files.
package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/quarkcity/meal-ledger/internal/extraction"
)

const folderMimeType = "application/vnd.google-apps.folder"

// file is the slice of Drive file metadata the source needs.
type file struct {
	ID       string
	Name     string
	MimeType string
}

// api abstracts the two Drive calls the source makes, so traversal
// logic can be tested without a live client.
type api interface {
	// list returns the files matching a Drive search query
	list(ctx context.Context, query string) ([]file, error)

	// download returns the content of a file by id
	download(ctx context.Context, id string) ([]byte, error)
}

// Source lists and downloads receipt images for one month.
type Source struct {
	api            api
	rootFolderName string
}

// NewSource creates a Drive-backed source using a service account
// credentials file.
func NewSource(ctx context.Context, credentialsFile, rootFolderName string) (*Source, error) {
	if rootFolderName == "" {
		return nil, fmt.Errorf("root folder name is required")
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}

	return &Source{
		api:            &googleAPI{svc: svc},
		rootFolderName: rootFolderName,
	}, nil
}

// Images downloads every receipt in every employee's folder for the
// given month. Month folders are matched case-insensitively against
// monthFolder, e.g. "October 2025". Image paths follow the
// images/<employee>/<month>/<file> convention the reconciler derives
// user ids from.
func (s *Source) Images(ctx context.Context, monthFolder string) ([]extraction.SourceImage, error) {
	root, err := s.findRootFolder(ctx)
	if err != nil {
		return nil, err
	}

	employees, err := s.listFolders(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("listing employee folders: %w", err)
	}

	var images []extraction.SourceImage
	for _, employee := range employees {
		months, err := s.listFolders(ctx, employee.ID)
		if err != nil {
			return nil, fmt.Errorf("listing folders for %s: %w", employee.Name, err)
		}

		for _, month := range months {
			if !strings.EqualFold(month.Name, monthFolder) {
				continue
			}

			slog.Info("Downloading receipts", "employee", employee.Name, "month", month.Name)
			downloaded, err := s.downloadFolder(ctx, month.ID, path.Join("images", employee.Name, month.Name))
			if err != nil {
				return nil, fmt.Errorf("downloading receipts for %s: %w", employee.Name, err)
			}
			images = append(images, downloaded...)
			break
		}
	}

	slog.Info("Drive download complete", "images", len(images))
	return images, nil
}

// EmployeeNames returns the names of the employee folders under the
// root, whether or not they have data for any month.
func (s *Source) EmployeeNames(ctx context.Context) ([]string, error) {
	root, err := s.findRootFolder(ctx)
	if err != nil {
		return nil, err
	}

	employees, err := s.listFolders(ctx, root.ID)
	if err != nil {
		return nil, fmt.Errorf("listing employee folders: %w", err)
	}

	names := make([]string, 0, len(employees))
	for _, employee := range employees {
		names = append(names, employee.Name)
	}
	return names, nil
}

func (s *Source) findRootFolder(ctx context.Context) (*file, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(s.rootFolderName), folderMimeType)
	matches, err := s.api.list(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("finding root folder: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("root folder %q not found", s.rootFolderName)
	}
	return &matches[0], nil
}

func (s *Source) listFolders(ctx context.Context, parentID string) ([]file, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType = '%s' and trashed = false",
		parentID, folderMimeType)
	return s.api.list(ctx, query)
}

// downloadFolder downloads every non-folder item under folderID,
// recursing into nested folders.
func (s *Source) downloadFolder(ctx context.Context, folderID, prefix string) ([]extraction.SourceImage, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	items, err := s.api.list(ctx, query)
	if err != nil {
		return nil, err
	}

	var images []extraction.SourceImage
	for _, item := range items {
		if item.MimeType == folderMimeType {
			nested, err := s.downloadFolder(ctx, item.ID, path.Join(prefix, item.Name))
			if err != nil {
				return nil, err
			}
			images = append(images, nested...)
			continue
		}

		data, err := s.api.download(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("downloading %s: %w", item.Name, err)
		}
		images = append(images, extraction.SourceImage{
			Path:        path.Join(prefix, item.Name),
			Data:        data,
			ContentType: item.MimeType,
		})
	}
	return images, nil
}

// escapeQuery escapes single quotes for Drive search query literals.
func escapeQuery(s string) string {
	return strings.ReplaceAll(s, `'`, `\'`)
}

// googleAPI implements api over the Drive v3 client.
type googleAPI struct {
	svc *drive.Service
}

func (g *googleAPI) list(ctx context.Context, query string) ([]file, error) {
	var files []file
	call := g.svc.Files.List().
		Q(query).
		Fields("nextPageToken, files(id, name, mimeType)").
		PageSize(1000)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			files = append(files, file{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (g *googleAPI) download(ctx context.Context, id string) ([]byte, error) {
	resp, err := g.svc.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
