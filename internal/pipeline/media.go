package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/parleybot/parley/internal/message"
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	youtubePattern = regexp.MustCompile(`https?://(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)[\w-]+`)
	gifPattern     = regexp.MustCompile(`https?://(?:\S+\.)?(?:giphy|tenor)\.com/\S+`)
)

// PageSummary is the distilled form of a linked web page.
type PageSummary struct {
	Title   string
	Excerpt string
}

// PageFetcher resolves a URL into a short page summary.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (PageSummary, error)
}

// ImageDescriber captions an image reachable at a URL.
type ImageDescriber interface {
	Describe(ctx context.Context, url string) (string, error)
}

// MediaProcessor rewrites attachments and links into structured text tags
// so the rest of the pipeline (and the model) sees media as compact
// references instead of raw URLs. Image and GIF attachments are captioned
// through the vision model. It always passes control onward.
type MediaProcessor struct {
	fetcher   PageFetcher
	describer ImageDescriber
	logger    *slog.Logger
}

func NewMediaProcessor(log *slog.Logger, fetcher PageFetcher, describer ImageDescriber) *MediaProcessor {
	if log == nil {
		log = slog.Default()
	}
	return &MediaProcessor{
		fetcher:   fetcher,
		describer: describer,
		logger:    log.With(slog.String("component", "media_processor")),
	}
}

func (p *MediaProcessor) Matches(msg message.Message) bool {
	return len(msg.Attachments) > 0 || urlPattern.MatchString(msg.Content)
}

func (p *MediaProcessor) Handle(ctx context.Context, msg message.Message, _ History) (Decision, error) {
	content := p.rewriteLinks(ctx, msg.Content)

	for _, att := range msg.Attachments {
		content = appendTag(content, p.attachmentTag(ctx, att))
	}

	rewritten := msg.WithContent(content)
	rewritten.Attachments = nil
	return Continue(rewritten), nil
}

// rewriteLinks replaces each distinct URL with a typed tag. YouTube and GIF
// hosts are classified by pattern; everything else is fetched and
// summarized, falling back to a bare link tag when the fetch fails.
func (p *MediaProcessor) rewriteLinks(ctx context.Context, content string) string {
	seen := map[string]string{}
	return urlPattern.ReplaceAllStringFunc(content, func(raw string) string {
		url := strings.TrimRight(raw, ">),.")
		suffix := raw[len(url):]
		if tag, ok := seen[url]; ok {
			return tag + suffix
		}

		var tag string
		switch {
		case youtubePattern.MatchString(url):
			tag = fmt.Sprintf("[youtube ::: %s]", url)
		case gifPattern.MatchString(url):
			tag = fmt.Sprintf("[gif ::: %s]", url)
		default:
			tag = p.linkTag(ctx, url)
		}
		seen[url] = tag
		return tag + suffix
	})
}

func (p *MediaProcessor) linkTag(ctx context.Context, url string) string {
	if p.fetcher == nil {
		return fmt.Sprintf("[link ::: %s]", url)
	}
	summary, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.logger.Warn("link fetch failed", slog.String("url", url), slog.Any("error", err))
		return fmt.Sprintf("[link ::: %s]", url)
	}
	if summary.Excerpt == "" {
		return fmt.Sprintf("[link ::: %s]", summary.Title)
	}
	return fmt.Sprintf("[link ::: %s ::: %s]", summary.Title, summary.Excerpt)
}

// attachmentTag renders one attachment. Images and GIFs get a model-written
// caption when the describer is available; everything else, and any caption
// failure, falls back to the bare kind-and-label tag.
func (p *MediaProcessor) attachmentTag(ctx context.Context, att message.Attachment) string {
	label := att.Name
	if label == "" {
		label = att.URL
	}
	kind := string(att.Type)
	if kind == "" {
		kind = string(message.AttachmentFile)
	}
	if p.describer != nil && att.URL != "" && describable(att.Type) {
		caption, err := p.describer.Describe(ctx, att.URL)
		if err != nil {
			p.logger.Warn("image caption failed", slog.String("url", att.URL), slog.Any("error", err))
		} else if caption != "" {
			return fmt.Sprintf("[%s ::: %s ::: %s]", kind, label, caption)
		}
	}
	return fmt.Sprintf("[%s ::: %s]", kind, label)
}

func describable(t message.AttachmentType) bool {
	return t == message.AttachmentImage || t == message.AttachmentGIF
}

func appendTag(content, tag string) string {
	if content == "" {
		return tag
	}
	return content + " " + tag
}
