package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuchat/backend/internal/domain/chat"
	"github.com/docuchat/backend/internal/domain/document"
	"github.com/docuchat/backend/internal/infrastructure/config"
	"github.com/docuchat/backend/internal/infrastructure/textract"
)

// stubSessionRepo 只提供统计用的 Count
type stubSessionRepo struct {
	sessions int
}

func (r *stubSessionRepo) Save(s *chat.Session) error                  { return nil }
func (r *stubSessionRepo) Get(id, o string) (*chat.Session, error)     { return nil, chat.ErrSessionNotFound }
func (r *stubSessionRepo) List(o string) ([]*chat.Session, error)      { return nil, nil }
func (r *stubSessionRepo) TouchActivity(id string, at time.Time) error { return nil }
func (r *stubSessionRepo) Delete(id, o string) error                   { return nil }
func (r *stubSessionRepo) DeleteIdleBefore(c time.Time) ([]string, error) { return nil, nil }
func (r *stubSessionRepo) Count(o string) (int, error)                 { return r.sessions, nil }

type serviceFixture struct {
	service   *Service
	docRepo   *fakeDocumentRepo
	chunkRepo *fakeChunkRepo
	store     *fakeVectorStore
	uploadDir string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Ingest.UploadDir = t.TempDir()
	cfg.Ingest.MaxFileSize = 1024

	chunker, err := NewChunker(DefaultChunkerConfig())
	require.NoError(t, err)

	f := &serviceFixture{
		docRepo:   newFakeDocumentRepo(),
		chunkRepo: &fakeChunkRepo{},
		store:     newFakeVectorStore(),
		uploadDir: cfg.Ingest.UploadDir,
	}
	processor := NewProcessor(cfg, f.docRepo, f.chunkRepo, chunker,
		textract.NewReader(), noopExtractor{}, &fakeEmbedder{}, f.store, &recordingNotifier{})
	f.service = NewService(cfg, f.docRepo, f.chunkRepo, &stubSessionRepo{sessions: 2},
		f.store, processor)
	return f
}

func TestUpload_RejectsUnsupportedExtension(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Upload(context.Background(), "user-1", "malware.exe", 10, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Upload(context.Background(), "user-1", "notes.txt", 4096, strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestUpload_CreatesRecordAndSavesFile(t *testing.T) {
	f := newServiceFixture(t)

	doc, err := f.service.Upload(context.Background(), "user-1", "meeting notes.txt", 11, strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.Equal(t, "user-1", doc.OwnerID)
	assert.Equal(t, "meeting notes.txt", doc.OriginalFilename)
	assert.Equal(t, "txt", doc.FileType)
	// 存储文件名带文档 ID 前缀且不含空格
	assert.True(t, strings.HasPrefix(doc.Filename, doc.ID+"_"))
	assert.NotContains(t, doc.Filename, " ")

	data, err := os.ReadFile(filepath.Join(f.uploadDir, doc.Filename))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	saved, err := f.docRepo.Get(doc.ID)
	require.NoError(t, err)
	// 上传立即返回，处理在后台推进
	assert.Contains(t,
		[]string{document.StatusUploaded, document.StatusProcessing, document.StatusCompleted},
		saved.Status)
}

func TestIngestText_RejectsEmptyText(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.IngestText(context.Background(), "user-1", "note", "   ")
	assert.Error(t, err)
}

func TestDelete_RemovesRowsVectorsAndFile(t *testing.T) {
	f := newServiceFixture(t)

	doc, err := f.service.Upload(context.Background(), "user-1", "notes.txt", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(context.Background(), doc.ID, "user-1"))

	_, err = f.docRepo.Get(doc.ID)
	assert.ErrorIs(t, err, document.ErrNotFound)
	_, err = os.Stat(filepath.Join(f.uploadDir, doc.Filename))
	assert.True(t, os.IsNotExist(err))
}

func TestDelete_WrongOwner(t *testing.T) {
	f := newServiceFixture(t)

	doc, err := f.service.Upload(context.Background(), "user-1", "notes.txt", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	err = f.service.Delete(context.Background(), doc.ID, "user-2")
	assert.ErrorIs(t, err, document.ErrNotFound)
}

func TestTotals(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Upload(context.Background(), "user-1", "notes.txt", 5, strings.NewReader("hello"))
	require.NoError(t, err)

	totals, err := f.service.Totals(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Documents)
	assert.Equal(t, 2, totals.Sessions)
}
