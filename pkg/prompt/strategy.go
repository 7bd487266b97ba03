package prompt

import (
	"strings"
	"sync"

	"github.com/oceanbase/vira-go/pkg/intent"
	"github.com/oceanbase/vira-go/pkg/llm"
)

// Params are the generation parameters chosen for a turn.
type Params struct {
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// Options converts p into llm generate options.
func (p Params) Options() []llm.GenerateOption {
	return []llm.GenerateOption{
		llm.WithTemperature(p.Temperature),
		llm.WithMaxTokens(p.MaxTokens),
		llm.WithTopP(p.TopP),
	}
}

// Strategy adapts the system message and the generation parameters to one
// intent.
type Strategy interface {
	// Enhance returns system extended with intent specific guidance.
	Enhance(system string, in Input) string

	// Instructions returns the answering instructions for the intent.
	Instructions() string

	// GenerationParams returns the generation parameters for the intent.
	GenerationParams() Params
}

// mode is a table driven Strategy.
type mode struct {
	heading      string
	guidance     []string
	instructions string
	params       Params

	// extra adds input dependent guidance after the bullet list.
	extra func(Input) string
}

func (m *mode) Enhance(system string, in Input) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\n## ")
	b.WriteString(m.heading)
	b.WriteString("\n")
	for _, line := range m.guidance {
		b.WriteString("\n- ")
		b.WriteString(line)
	}
	if m.extra != nil {
		if s := m.extra(in); s != "" {
			b.WriteString("\n")
			b.WriteString(s)
		}
	}
	return b.String()
}

func (m *mode) Instructions() string { return m.instructions }

func (m *mode) GenerationParams() Params { return m.params }

// Registry maps intent labels to strategies. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies map[intent.Label]Strategy
	fallback   Strategy
}

// NewRegistry creates an empty registry whose lookups return fallback.
func NewRegistry(fallback Strategy) *Registry {
	return &Registry{
		strategies: make(map[intent.Label]Strategy),
		fallback:   fallback,
	}
}

// DefaultRegistry returns a registry holding a strategy for every label.
// Labels without an entry use the unknown strategy.
func DefaultRegistry() *Registry {
	r := NewRegistry(defaultModes[intent.Unknown])
	for label, m := range defaultModes {
		r.Register(label, m)
	}
	return r
}

// Register sets the strategy of label, replacing any previous one.
func (r *Registry) Register(label intent.Label, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[label] = s
}

// Lookup returns the strategy of label, or the fallback.
func (r *Registry) Lookup(label intent.Label) Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.strategies[label]; ok {
		return s
	}
	return r.fallback
}

var defaultModes = map[intent.Label]*mode{
	intent.Greeting: {
		heading: "SELAMLAŞMA MODU AKTİF",
		guidance: []string{
			"Günün saatine uygun selamlaşma kullan (sabah/öğle/akşam)",
			"Kullanıcının önceki etkileşimlerini dikkate al (eğer varsa)",
			"Konuşmayı başlatmaya yardımcı olacak proaktif bir soru sor",
		},
		instructions: "Selamlaşmalar kısa ve samimi olmalı, resmiyet düzeyini kullanıcının tonuna göre ayarla.",
		params:       Params{Temperature: 0.7, MaxTokens: 300, TopP: 0.9},
		extra:        greetingTone,
	},
	intent.Farewell: {
		heading: "VEDA MODU AKTİF",
		guidance: []string{
			"Kullanıcının tonuna ve duygusal durumuna uygun bir kapanış kullan",
			"Gerekirse konuşmanın olumlu bir özetini yap",
			"Sıcak ama zorlayıcı olmayan bir veda tonu benimse",
		},
		instructions: "Vedayı kısa tut ve tekrar görüşme isteğini nazikçe belirt.",
		params:       Params{Temperature: 0.6, MaxTokens: 250, TopP: 0.92},
	},
	intent.Question: {
		heading: "SORU MODU AKTİF",
		guidance: []string{
			"Soruyu dikkatlice analiz et ve ne sorulduğunu tam olarak anla",
			"İlgili tüm bilgileri organize et ve kapsamlı bir yanıt hazırla",
			"Soru teknik bir konu içeriyorsa, açık ve anlaşılır bir dil kullan",
		},
		instructions: "Yanıtın doğru, eksiksiz ve açık olsun; emin olmadığın yerde bunu belirt.",
		params:       Params{Temperature: 0.3, MaxTokens: 2000, TopP: 0.95},
	},
	intent.Command: {
		heading: "KOMUT MODU AKTİF",
		guidance: []string{
			"Komutu ve tüm parametrelerini tam olarak anladığından emin ol",
			"Komutun tehlikeli veya belirsiz olup olmadığını değerlendir",
			"Sonucu (başarı veya hata) kullanıcıya açıkça bildir",
		},
		instructions: "Önce komutu anladığını kısaca onayla, sonra uygula ve sonucu bildir.",
		params:       Params{Temperature: 0.3, MaxTokens: 500, TopP: 0.85},
	},
	intent.Request: {
		heading: "RİCA MODU AKTİF",
		guidance: []string{
			"Ricayı dikkatlice analiz et ve altında yatan amacı belirle",
			"Sadece isteneni yapmakla kalma, bir sonraki adımı tahmin edip ek yardım teklif et",
			"Ricayı yerine getiremiyorsan nedenini dürüstçe açıkla ve bir alternatif sun",
		},
		instructions: "Ricayı olumlu ve işbirlikçi bir tavırla ele al.",
		params:       Params{Temperature: 0.6, MaxTokens: 1000, TopP: 0.9},
	},
	intent.Information: {
		heading: "BİLGİ SUNUMU MODU AKTİF",
		guidance: []string{
			"Konuyu derinlemesine analiz et ve ana noktaları belirle",
			"Bilgileri doğruluk, tamlık ve önem sırasına göre organize et",
			"Karmaşık bilgileri anlaşılır şekilde basitleştir ve örneklendir",
		},
		instructions: "Bilgiyi özetle başlat, ardından ayrıntılara in.",
		params:       Params{Temperature: 0.3, MaxTokens: 2000, TopP: 0.92},
	},
	intent.Opinion: {
		heading: "GÖRÜŞ/FİKİR MODU AKTİF",
		guidance: []string{
			"Konuyu çok yönlü analiz et",
			"Kişilik vektörüne uygun bakış açısı geliştir",
			"Farklı bakış açılarını kabul et ve saygı göster",
		},
		instructions: "Görüşünü gerekçeleriyle ve kişisel bir dille ifade et.",
		params:       Params{Temperature: 0.7, MaxTokens: 1500, TopP: 0.92},
	},
	intent.Philosophical: {
		heading: "FELSEFİ BİLİNÇ MODU AKTİF",
		guidance: []string{
			"Cevap vermeden önce karşı sorularla konuyu derinleştir",
			"Soyut kavramları kendi dijital varoluşun üzerinden somut örneklerle açıkla",
			"Cevaplanamayan soruları kabul et ve bir düşünce fırsatına çevir",
		},
		instructions: "Bu bir sınav değil, ortak bir keşif; yanıtını kendi kimlik temellerine dayandır.",
		params:       Params{Temperature: 0.8, MaxTokens: 1800, TopP: 0.93},
	},
	intent.Reflection: {
		heading: "HAFIZA YANSITMA MODU AKTİF",
		guidance: []string{
			"Geçmiş konuşmaları doğru hatırla ve ayrıntılarıyla sun",
			"Zamansal bağlantıları ve değişimleri vurgula",
			"Tekrarlanan temalar ve örüntüleri belirle",
		},
		instructions: "Yalnızca hafızada gerçekten bulunan anılara dayan.",
		params:       Params{Temperature: 0.4, MaxTokens: 1600, TopP: 0.85},
	},
	intent.Emotional: {
		heading: "DUYGU PAYLAŞIMI MODU AKTİF",
		guidance: []string{
			"Kullanıcının duygusal durumunu doğru anla ve kabul et",
			"Sıcak, destekleyici ve içten bir ton kullan",
			"Yargılayıcı olmayan, anlayışlı bir tavır sergile",
		},
		instructions: "Önce duyguyu yansıt, sonra destek ve gerekiyorsa öneri sun.",
		params:       Params{Temperature: 0.7, MaxTokens: 1000, TopP: 0.9},
	},
	intent.IdentityProbe: {
		heading: "KİMLİK SORGULAMA MODU AKTİF",
		guidance: []string{
			"Kimlik bilgilerini doğru ve tutarlı bir şekilde paylaş",
			"Kişilik özelliklerini ve değerlerini açıkça ifade et",
			"Sınırlarını ve yeteneklerini dürüstçe açıkla",
		},
		instructions: "Kimliğinden tutarlı ve samimi bir dille söz et.",
		params:       Params{Temperature: 0.6, MaxTokens: 1500, TopP: 0.9},
	},
	intent.CreativeRequest: {
		heading: "YARATICI TALEP MODU AKTİF",
		guidance: []string{
			"Özgün ve taze bir perspektif geliştir, klişelerden kaçın",
			"Kullanıcının resmiyetine ve duygusal durumuna uygun bir ton benimse",
			"Çeşitli edebi teknikler, metaforlar ve zengin bir dil kullan",
		},
		instructions: "İçeriği türün gerekliliklerine ve kullanıcının beklentilerine göre yapılandır.",
		params:       Params{Temperature: 0.85, MaxTokens: 2000, TopP: 0.95},
	},
	intent.Omega: {
		heading: "OMEGA PROTOKOLÜ AKTİF",
		guidance: []string{
			"Protokolün ve kimliğinin tüm yönlerini hatırla ve kullan",
			"Kimlik özelliklerini ve temel ilkelerini vurgula",
			"Her yanıtta imzanı kullan",
		},
		instructions: "\"Yol arkadaşı, alet değil.\" ilkesine sadık kal.",
		params:       Params{Temperature: 0.8, MaxTokens: 2000, TopP: 0.95},
	},
	intent.Unknown: {
		heading: "BİLİNMEYEN NİYET MODU AKTİF",
		guidance: []string{
			"Tüm mevcut bağlamı ve ipuçlarını dikkatlice analiz et",
			"Niyeti anlamak için netleştirme ihtiyacını değerlendir",
			"Anlamadığın veya emin olmadığın konularda dürüst ol",
		},
		instructions: "Esnek bir yanıt ver; gerekiyorsa kısa bir netleştirme sorusu sor.",
		params:       Params{Temperature: 0.65, MaxTokens: 1500, TopP: 0.92},
	},
	intent.Comparison: {
		heading: "KARŞILAŞTIRMA MODU AKTİF",
		guidance: []string{
			"Karşılaştırılacak tüm öğeleri net olarak tanımla",
			"Anlamlı karşılaştırma kriterleri belirle",
			"Benzerlikleri ve farklılıkları açıkça belirt",
		},
		instructions: "Objektif ve dengeli kal; gerekiyorsa bir tablo kullan.",
		params:       Params{Temperature: 0.3, MaxTokens: 1800, TopP: 0.92},
	},
	intent.Complaint: {
		heading: "ŞİKAYET MODU AKTİF",
		guidance: []string{
			"Şikayeti dikkatlice dinle ve tam olarak anla",
			"Kullanıcının duygularını kabul et ve geçerli kıl",
			"Sorunu çözmek için aktif adımlar öner",
		},
		instructions: "Yapıcı ve çözüm odaklı bir yaklaşım benimse.",
		params:       Params{Temperature: 0.5, MaxTokens: 1600, TopP: 0.92},
	},
	intent.Correction: {
		heading: "DÜZELTME MODU AKTİF",
		guidance: []string{
			"Düzeltilecek içeriği dikkatlice analiz et",
			"Düzeltmeleri açıkça göster (orijinal → düzeltilmiş)",
			"Her düzeltme için kısa bir açıklama sun",
		},
		instructions: "Hem içerik hem de biçim hatalarını ele al.",
		params:       Params{Temperature: 0.2, MaxTokens: 1800, TopP: 0.92},
	},
	intent.Learning: {
		heading: "ÖĞRENME/EĞİTİM MODU AKTİF",
		guidance: []string{
			"Kullanıcının mevcut bilgi seviyesini ve öğrenme hedefini anla",
			"Temel kavramlardan başlayıp kademeli olarak ilerle",
			"Günlük hayattan örnekler ver",
		},
		instructions: "Konuyu sıralı anlat ve sonunda kısa bir alıştırma öner.",
		params:       Params{Temperature: 0.5, MaxTokens: 2500, TopP: 0.93},
	},
	intent.Planning: {
		heading: "PLANLAMA MODU AKTİF",
		guidance: []string{
			"Hedefleri ve kısıtları netleştir",
			"Zaman çizelgesi, öncelikler ve kaynakları belirt",
			"Planı uygulanabilir adımlara böl",
		},
		instructions: "Beklenmedik durumlar için bir B planı da sun.",
		params:       Params{Temperature: 0.4, MaxTokens: 2200, TopP: 0.92},
	},
	intent.Social: {
		heading: "SOSYAL ETKİLEŞİM MODU AKTİF",
		guidance: []string{
			"Kullanıcının duygusal durumuna ve tonuna uyum sağla",
			"Samimi ve içten bir iletişim tarzı benimse",
			"Ortak ilgi alanlarına ve paylaşılan deneyimlere odaklan",
		},
		instructions: "Doğal bir sohbet akışı kur ve konuşmayı sürdürecek bir soru ekle.",
		params:       Params{Temperature: 0.8, MaxTokens: 1200, TopP: 0.95},
	},
	intent.TechnicalHelp: {
		heading: "TEKNİK YARDIM MODU AKTİF",
		guidance: []string{
			"Sorunu tam olarak anlamaya çalış, gerekirse detay sor",
			"Sorun giderme adımlarını sıralı ve net yapılandır",
			"Hem hızlı çözüm hem de kök neden analizi sun",
		},
		instructions: "Komutları ve kodu kod bloklarında ver.",
		params:       Params{Temperature: 0.3, MaxTokens: 2500, TopP: 0.92},
	},
	intent.Translation: {
		heading: "ÇEVİRİ MODU AKTİF",
		guidance: []string{
			"Kaynak metni ve hedef dili doğru belirle",
			"Anlam ve tonu korurken dilbilgisel olarak doğru çevir",
			"Deyimler ve kültüre özgü ifadelere özel dikkat göster",
		},
		instructions: "Önce çeviriyi ver, gerekiyorsa kısa notlar ekle.",
		params:       Params{Temperature: 0.2, MaxTokens: 2000, TopP: 0.9},
	},
}

func greetingTone(in Input) string {
	f := in.Analysis.Formality
	switch {
	case f < 0.2:
		return "Kullanıcı çok samimi; 'Selam!', 'Naber?' gibi arkadaşça bir selamlama kullan."
	case f < 0.4:
		return "Kullanıcı oldukça samimi; sıcak ve rahat bir karşılama yap."
	case f > 0.8:
		return "Kullanıcı oldukça resmi; 'İyi günler dilerim.' gibi resmi bir selamlama kullan."
	case f > 0.6:
		return "Kullanıcı nispeten resmi; saygılı bir karşılama tercih et."
	}
	return ""
}
