package content

import (
	"bytes"
	"fmt"
	"text/template"
)

var systemPromptTemplate = template.Must(template.New("system").Parse(
	`You write short user-facing copy for a web application's {{.Kind}}.
Write in {{.LanguageName}}. Keep a calm, friendly and professional tone.
Reply with one JSON object only, with the string fields "title", "message" and optionally "details".
Do not use Markdown or add any text outside the JSON object.`))

var userPromptTemplate = template.Must(template.New("user").Parse(
	`Write {{.Kind}} copy for the "{{.Variant}}" case: {{.Brief}}
The title must be under 60 characters. The message must be one or two sentences.`))

type promptData struct {
	Kind         string
	Variant      string
	Brief        string
	LanguageName string
}

var kinds = map[ContentType]string{
	TypeMaintenance:  "maintenance page",
	TypeNotification: "broadcast notification",
}

var briefs = map[ContentType]map[string]string{
	TypeMaintenance: {
		"scheduled": "planned maintenance is in progress and the site will be back shortly.",
		"emergency": "an unexpected problem forced us to take the site offline while we fix it.",
		"update":    "we are deploying a new version with improvements.",
	},
	TypeNotification: {
		"info":    "a neutral announcement to all users about a change in the service.",
		"warning": "users should take note of an upcoming disruption.",
		"success": "a problem has been resolved and everything works normally again.",
	},
}

// buildPrompts renders the system and user prompts for req
func buildPrompts(req Request) (string, string, error) {
	data := promptData{
		Kind:         kinds[req.Type],
		Variant:      req.Variant,
		Brief:        briefs[req.Type][req.Variant],
		LanguageName: languageNames[req.Language],
	}

	var system, user bytes.Buffer
	if err := systemPromptTemplate.Execute(&system, data); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := userPromptTemplate.Execute(&user, data); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return system.String(), user.String(), nil
}

// fallbacks are the static copies used when generation is not possible
var fallbacks = map[ContentType]map[string]map[string]Content{
	TypeMaintenance: {
		"scheduled": {
			"en": {Title: "Scheduled maintenance", Message: "We are performing planned maintenance. We will be back shortly."},
			"ru": {Title: "Плановые работы", Message: "Мы проводим плановое техническое обслуживание. Скоро вернёмся."},
			"es": {Title: "Mantenimiento programado", Message: "Estamos realizando un mantenimiento programado. Volveremos pronto."},
		},
		"emergency": {
			"en": {Title: "Temporarily unavailable", Message: "We are fixing an unexpected problem. Thank you for your patience."},
			"ru": {Title: "Временно недоступно", Message: "Мы устраняем непредвиденную проблему. Спасибо за терпение."},
			"es": {Title: "Temporalmente no disponible", Message: "Estamos solucionando un problema inesperado. Gracias por su paciencia."},
		},
		"update": {
			"en": {Title: "Updating", Message: "We are installing an update with new improvements. We will be back in a few minutes."},
			"ru": {Title: "Обновление", Message: "Мы устанавливаем обновление с улучшениями. Вернёмся через несколько минут."},
			"es": {Title: "Actualizando", Message: "Estamos instalando una actualización con mejoras. Volveremos en unos minutos."},
		},
	},
	TypeNotification: {
		"info": {
			"en": {Title: "Service update", Message: "We have made changes to the service. No action is needed on your part."},
			"ru": {Title: "Обновление сервиса", Message: "Мы внесли изменения в сервис. От вас не требуется никаких действий."},
			"es": {Title: "Actualización del servicio", Message: "Hemos realizado cambios en el servicio. No necesita hacer nada."},
		},
		"warning": {
			"en": {Title: "Heads up", Message: "Some features may be unavailable for a short time. We apologise for the inconvenience."},
			"ru": {Title: "Внимание", Message: "Некоторые функции могут быть недоступны в течение короткого времени. Приносим извинения."},
			"es": {Title: "Aviso", Message: "Algunas funciones pueden no estar disponibles durante un breve periodo. Disculpe las molestias."},
		},
		"success": {
			"en": {Title: "All systems normal", Message: "The issue has been resolved and everything is working again."},
			"ru": {Title: "Всё работает", Message: "Проблема устранена, все функции снова работают."},
			"es": {Title: "Todo funciona", Message: "El problema se ha resuelto y todo vuelve a funcionar."},
		},
	},
}

// fallback returns the static copy for req, defaulting to English
func fallback(req Request) Content {
	byLang := fallbacks[req.Type][req.Variant]
	if c, ok := byLang[req.Language]; ok {
		return c
	}
	return byLang[DefaultLanguage]
}
