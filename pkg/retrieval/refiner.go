package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/llm"
)

const refinerSystem = "Sen, geçmiş bilgileri sentezleyerek bir konuşma için en alakalı bağlamı çıkaran zeki bir asistansın."

const refinerTask = `GÖREV: Bir kullanıcının güncel mesajını ve geçmiş konuşmalardan hatırlanan anıları analiz et. Bu anılardan SADECE güncel mesajla doğrudan ilgili ve ona değer katacak olanları kullanarak kısa, yoğun ve anlamlı bir özet çıkar. Alakasız veya tekrarlayan bilgileri ele.

KULLANICININ GÜNCEL MESAJI:
"%s"

GEÇMİŞTEN HATIRLANAN ANILAR (Benzerliğe göre sıralı):
%s

İSTENEN ÇIKTI:
Yukarıdaki anılardan faydalanarak, güncel konuşma için en faydalı olacak şekilde 1-2 cümlelik rafine bir bağlam özeti oluştur. Eğer anıların hiçbiri güncel mesajla anlamlı bir şekilde ilgili değilse, SADECE "" (boş bir metin) döndür.`

// DefaultRefineTimeout bounds one refinement call.
const DefaultRefineTimeout = 15 * time.Second

// ContextRefiner asks an LLM to condense the memory context to the one or
// two sentences that matter for the current message.
type ContextRefiner struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewContextRefiner creates a refiner. A nil logger is replaced by a no-op.
func NewContextRefiner(provider llm.Provider, logger *zap.Logger) *ContextRefiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContextRefiner{provider: provider, timeout: DefaultRefineTimeout, logger: logger}
}

// Refine returns the condensed context, or "" when memoryContext is empty,
// the model found nothing relevant or the call failed.
func (r *ContextRefiner) Refine(ctx context.Context, message, memoryContext string) string {
	if strings.TrimSpace(memoryContext) == "" || r.provider == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.provider.GenerateWithMessages(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: refinerSystem},
		{Role: llm.RoleUser, Content: fmt.Sprintf(refinerTask, message, memoryContext)},
	}, llm.WithTemperature(0.1), llm.WithMaxTokens(150))
	if err != nil {
		r.logger.Warn("context refinement failed", zap.Error(err))
		return ""
	}

	refined := strings.TrimSpace(out)
	if refined == `""` || refined == "''" {
		refined = ""
	}
	r.logger.Debug("context refined", zap.Bool("relevant", refined != ""))
	return refined
}
