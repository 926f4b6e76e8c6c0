// Package portal drives the regulatory search portal through a headless Chrome session.
// Every portal-specific selector lives in Selectors so the rest of the pipeline stays portal agnostic.
package portal

import "time"

// Selectors locates the portal form, results and download controls (CSS selectors)
type Selectors struct {
	NameInput      string
	SubstanceInput string
	DosageInput    string
	SubmitButton   string
	ResultsTable   string
	DownloadLink   string // relative to a result row
	// NoResultsPattern is a case-insensitive regular expression matched against the page text
	NoResultsPattern string
}

// Options configures a browser session
type Options struct {
	SearchURL         string
	Selectors         Selectors
	NavigationTimeout time.Duration // navigation + form fill + submit
	ResultsTimeout    time.Duration // wait for results table or no-results message
	ClickTimeout      time.Duration
	PollInterval      time.Duration
	Headless          bool
	ExecPath          string
	UserAgent         string
}

// INFARMED advanced search (Portugal)
const DefaultSearchURL = "https://extranet.infarmed.pt/INFOMED-fo/pesquisa-avancada.xhtml"

// DefaultSelectors matches the INFARMED INFOMED advanced search page
func DefaultSelectors() Selectors {
	return Selectors{
		NameInput:        `input[title$="Nome do Medicamento"]`,
		SubstanceInput:   `input[title$="Substância Ativa/DCI"]`,
		DosageInput:      `input[title$="Dosagem"]`,
		SubmitButton:     `button[id$="mainForm:btnDoSearch"]`,
		ResultsTable:     `table[summary="Tabela de resultados"]`,
		DownloadLink:     `a[id$="pesqAvancadaDatableRcmIcon"]`,
		NoResultsPattern: `não foram encontrados resultados`,
	}
}

// DefaultOptions returns options for the INFARMED portal
func DefaultOptions() Options {
	return Options{
		SearchURL:         DefaultSearchURL,
		Selectors:         DefaultSelectors(),
		NavigationTimeout: 10 * time.Second,
		ResultsTimeout:    10 * time.Second,
		ClickTimeout:      10 * time.Second,
		PollInterval:      250 * time.Millisecond,
		Headless:          true,
	}
}

func (o *Options) applyDefaults() {
	def := DefaultOptions()
	if o.SearchURL == "" {
		o.SearchURL = def.SearchURL
	}
	if o.Selectors == (Selectors{}) {
		o.Selectors = def.Selectors
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = def.NavigationTimeout
	}
	if o.ResultsTimeout <= 0 {
		o.ResultsTimeout = def.ResultsTimeout
	}
	if o.ClickTimeout <= 0 {
		o.ClickTimeout = def.ClickTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
}
