package infra

import "regexp"

// Catálogo fixo de crawlers de buscadores/redes sociais. Requisito de SEO:
// esses agentes passam por cima de rate limit, teto de conexões e bloqueios.
// A lista é deliberadamente conservadora — user-agent é falsificável, então
// só entram assinaturas conhecidas e de alto valor.
var trustedBotPattern = regexp.MustCompile(`(?i)(googlebot|bingbot|slurp|duckduckbot|baiduspider|yandex(bot)?|sogou|exabot|facebookexternalhit|facebot|twitterbot|linkedinbot|applebot|pinterestbot|whatsapp|telegrambot|ia_archiver)`)

// BotDetector implementa domain.BotDetector com o catálogo acima.
type BotDetector struct {
	re *regexp.Regexp
}

func NewBotDetector() *BotDetector {
	return &BotDetector{re: trustedBotPattern}
}

func (d *BotDetector) IsTrusted(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return d.re.MatchString(userAgent)
}
