// Package admission é o adapter HTTP do controle de admissão: extrai a
// identidade do cliente da requisição, delega ao pipeline em application e
// traduz o veredito em resposta (403 para blocklist, 429 para o resto, sempre
// com corpo JSON e Retry-After quando aplicável).
//
// Uso típico, na frente do proxy:
//
//	svc := application.NewService(application.Config{...})
//	h = admission.Middleware(admission.Options{Service: svc})(h)
package admission
