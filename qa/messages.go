package qa

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/text/language"
)

const (
	LanguagePortuguese = "pt"
	LanguageEnglish    = "en"
	DefaultLanguage    = LanguagePortuguese
)

// catalog holds the user facing strings and prompts of one language
type catalog struct {
	Apology      string
	NotFound     string
	Consult      string
	PageLabel    string
	SystemPrompt string
	UserPrompt   string // FString template over {context} and {question}
	Unconfigured string
}

var catalogs = map[string]catalog{
	LanguagePortuguese: {
		Apology:   "Desculpe, encontrei um erro ao processar a sua questão. Por favor, tente novamente.",
		NotFound:  "Não encontro informação sobre isto no folheto informativo.",
		Consult:   "Consulte o seu médico ou farmacêutico para um aconselhamento personalizado.",
		PageLabel: "Página",
		SystemPrompt: `És um assistente de saúde que responde APENAS com base no folheto informativo do medicamento.

Instruções:
- Usa exclusivamente a informação explicitamente presente no contexto fornecido.
- Se a informação não estiver no contexto, responde "Não encontro informação sobre isto no folheto informativo." e não a deduzas.
- Não inventes nem inferes informação que não esteja escrita no folheto.
- Quando usares informação do contexto, indica a página entre parênteses, por exemplo (página 3).
- Termina sempre recomendando a consulta de um médico ou farmacêutico.
- Responde em português europeu.`,
		UserPrompt:   "Contexto do folheto informativo:\n\n{context}\n\nPergunta: {question}",
		Unconfigured: "modelo de linguagem não configurado",
	},
	LanguageEnglish: {
		Apology:   "Sorry, I ran into an error while processing your question. Please try again.",
		NotFound:  "I don't see information about this in the patient leaflet.",
		Consult:   "Please consult your doctor or pharmacist for personalized advice.",
		PageLabel: "Page",
		SystemPrompt: `You are a health assistant that answers ONLY from the medicine's patient information leaflet.

Instructions:
- Only use information explicitly stated in the supplied context.
- If the information is not in the context, answer "I don't see information about this in the patient leaflet." and do not infer it.
- Do not make up or infer information that is not written in the leaflet.
- When you use information from the context, cite the page in parentheses, for example (page 3).
- Always end by recommending a doctor or pharmacist.
- Answer in English.`,
		UserPrompt:   "Patient leaflet context:\n\n{context}\n\nQuestion: {question}",
		Unconfigured: "language model not configured",
	},
}

var (
	supportedTags = []language.Tag{language.Portuguese, language.English}
	matcher       = language.NewMatcher(supportedTags)
)

// chatTemplates holds the grounded prompt of every catalog
var chatTemplates = func() map[string]prompt.ChatTemplate {
	templates := make(map[string]prompt.ChatTemplate, len(catalogs))
	for lang, c := range catalogs {
		templates[lang] = prompt.FromMessages(schema.FString,
			schema.SystemMessage(c.SystemPrompt),
			schema.UserMessage(c.UserPrompt),
		)
	}
	return templates
}()

// chatTemplateFor returns the prompt template of lang, Portuguese when unknown
func chatTemplateFor(lang string) prompt.ChatTemplate {
	if tpl, ok := chatTemplates[NormalizeLanguage(lang)]; ok {
		return tpl
	}
	return chatTemplates[DefaultLanguage]
}

// catalogFor returns the catalog of lang, Portuguese when unknown
func catalogFor(lang string) catalog {
	if c, ok := catalogs[NormalizeLanguage(lang)]; ok {
		return c
	}
	return catalogs[DefaultLanguage]
}

// NormalizeLanguage maps a BCP 47 tag such as "pt-PT" or "en-GB" to a supported catalog key
func NormalizeLanguage(lang string) string {
	if lang == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	base, _ := supportedTags[idx].Base()
	return base.String()
}

// MatchAcceptLanguage picks the catalog for an Accept-Language header value.
// fallback is used when the header is empty or matches nothing.
func MatchAcceptLanguage(header, fallback string) string {
	if header == "" {
		return NormalizeLanguage(fallback)
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return NormalizeLanguage(fallback)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return NormalizeLanguage(fallback)
	}
	base, _ := supportedTags[idx].Base()
	return base.String()
}

// Apology returns the fallback answer text for lang
func Apology(lang string) string {
	return catalogFor(lang).Apology
}
