package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"tailor/internal/domain"
)

// Notice names a user-visible milestone posted to the session chat.
type Notice string

const (
	NoticeGenerating      Notice = "generating"
	NoticeArtworkReady    Notice = "artwork_ready"
	NoticeArtworkFailed   Notice = "artwork_failed"
	NoticePrintReady      Notice = "print_ready"
	NoticePrintFailed     Notice = "print_failed"
	NoticeProductWorking  Notice = "product_working"
	NoticeProductReady    Notice = "product_ready"
	NoticeProductFailed   Notice = "product_failed"
	NoticeNoArtworkToSell Notice = "product_no_artwork"
)

var supportedLocales = []language.Tag{language.English, language.Indonesian}

var localeMatcher = language.NewMatcher(supportedLocales)

var noticeCatalog = func() catalog.Catalog {
	texts := map[Notice][2]string{
		NoticeGenerating:      {"Working on your artwork...", "Sedang membuat desainmu..."},
		NoticeArtworkReady:    {"Your artwork is ready. I'm preparing a print-ready version now.", "Desainmu sudah jadi. Sekarang aku siapkan versi siap cetak."},
		NoticeArtworkFailed:   {"I couldn't create that artwork: %s", "Desain gagal dibuat: %s"},
		NoticePrintReady:      {"Print-ready file done: %d x %d px at %d DPI.", "File siap cetak selesai: %d x %d px, %d DPI."},
		NoticePrintFailed:     {"I couldn't prepare the print file: %s", "File cetak gagal disiapkan: %s"},
		NoticeProductWorking:  {"Creating your product...", "Sedang membuat produkmu..."},
		NoticeProductReady:    {"Your product is ready (#%d).", "Produkmu sudah siap (#%d)."},
		NoticeProductFailed:   {"I couldn't create the product: %s", "Produk gagal dibuat: %s"},
		NoticeNoArtworkToSell: {"There is no artwork on the design yet. Add some before creating a product.", "Belum ada desain. Tambahkan desain dulu sebelum membuat produk."},
	}
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, t := range texts {
		for i, tag := range supportedLocales {
			if err := b.SetString(tag, string(key), t[i]); err != nil {
				panic(fmt.Sprintf("pipeline: notice %s (%s): %v", key, tag, err))
			}
		}
	}
	return b
}()

// Notifier posts localized assistant messages. Each (job, notice) pair maps
// to one message id, so a replayed flow never posts twice.
type Notifier struct {
	messages domain.MessageRepository
	logger   zerolog.Logger
}

func NewNotifier(messages domain.MessageRepository, logger zerolog.Logger) *Notifier {
	return &Notifier{messages: messages, logger: logger}
}

// Text renders notice in the best supported language for locale.
func Text(locale string, notice Notice, args ...any) string {
	tag, _ := language.MatchStrings(localeMatcher, locale)
	p := message.NewPrinter(tag, message.Catalog(noticeCatalog))
	return p.Sprintf(string(notice), args...)
}

// Post writes the notice for job. Failures are logged; a missing chat line
// never fails the flow.
func (n *Notifier) Post(ctx context.Context, job *domain.Job, locale, artifactID string, notice Notice, args ...any) {
	if n == nil || n.messages == nil {
		return
	}
	msg := &domain.Message{
		ID:         StepID(job.ID, "notice/"+string(notice)),
		SessionID:  job.SessionID,
		Role:       domain.RoleAssistant,
		Content:    Text(locale, notice, args...),
		ArtifactID: artifactID,
		JobID:      job.ID,
	}
	if err := n.messages.Create(ctx, msg); err != nil {
		n.logger.Error().
			Err(err).
			Str("job_id", job.ID).
			Str("notice", string(notice)).
			Msg("pipeline: post notice failed")
	}
}
