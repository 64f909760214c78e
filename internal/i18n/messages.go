// Package i18n holds the user-facing messages shown for each failure kind,
// in English and Khmer.
package i18n

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"rodinstudio/internal/domain"
)

const (
	LocaleEnglish = "en"
	LocaleKhmer   = "km"
)

var supported = []language.Tag{language.English, language.Khmer}

var matcher = language.NewMatcher(supported)

const (
	keyTransport        = "error.transport"
	keyGenerationFailed = "error.generation_failed"
	keyResolution       = "error.resolution"
	keyValidation       = "error.validation"
	keyTimeout          = "error.timeout"
	keyTooManyImages    = "error.too_many_images"
	keyImageTooLarge    = "error.image_too_large"
	keyInvalidImage     = "error.invalid_image"
	keyInvalidOption    = "error.invalid_option"
)

var entries = map[language.Tag]map[string]string{
	language.English: {
		keyTransport:        "Unable to reach the generation service. Please try again.",
		keyGenerationFailed: "3D model generation failed.",
		keyResolution:       "Unable to download the 3D model.",
		keyValidation:       "Please enter a prompt or add an image.",
		keyTimeout:          "Generation is taking too long. Please try again.",
		keyTooManyImages:    "You can upload at most 5 images.",
		keyImageTooLarge:    "Each image must be 10MB or smaller.",
		keyInvalidImage:     "Only image files can be uploaded.",
		keyInvalidOption:    "One of the generation options is not supported.",
	},
	language.Khmer: {
		keyTransport:        "មិនអាចភ្ជាប់ទៅសេវាកម្មបានទេ។ សូមព្យាយាមម្តងទៀត។",
		keyGenerationFailed: "ការបង្កើតម៉ូដែល 3D បានបរាជ័យ។",
		keyResolution:       "មិនអាចទាញយកម៉ូដែល 3D បានទេ។",
		keyValidation:       "សូមបញ្ចូលអត្ថបទ ឬរូបភាព។",
		keyTimeout:          "ការបង្កើតចំណាយពេលយូរពេក។ សូមព្យាយាមម្តងទៀត។",
		keyTooManyImages:    "អ្នកអាចផ្ទុករូបភាពបានច្រើនបំផុត ៥ ។",
		keyImageTooLarge:    "រូបភាពនីមួយៗត្រូវតែមានទំហំមិនលើស 10MB។",
		keyInvalidImage:     "អាចផ្ទុកបានតែឯកសាររូបភាពប៉ុណ្ណោះ។",
		keyInvalidOption:    "ជម្រើសមួយក្នុងចំណោមជម្រើសបង្កើតមិនត្រូវបានគាំទ្រទេ។",
	},
}

var cat = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range entries {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(err)
			}
		}
	}
	return b
}

// Match maps a locale hint (tag, Accept-Language value or country-less
// language code) to a supported locale.
func Match(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return LocaleEnglish
	}
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return LocaleEnglish
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return LocaleEnglish
	}
	if supported[idx] == language.Khmer {
		return LocaleKhmer
	}
	return LocaleEnglish
}

// LocaleForCountry returns the preferred locale for an ISO country code.
func LocaleForCountry(country string) string {
	if strings.EqualFold(strings.TrimSpace(country), "KH") {
		return LocaleKhmer
	}
	return LocaleEnglish
}

func printer(locale string) *message.Printer {
	tag := language.English
	if Match(locale) == LocaleKhmer {
		tag = language.Khmer
	}
	return message.NewPrinter(tag, message.Catalog(cat))
}

// Message returns the fixed localized message for kind.
func Message(locale string, kind domain.ErrorKind) string {
	return printer(locale).Sprintf(keyForKind(kind))
}

func keyForKind(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindValidation:
		return keyValidation
	case domain.KindGenerationFailed:
		return keyGenerationFailed
	case domain.KindResolution:
		return keyResolution
	case domain.KindTimeout:
		return keyTimeout
	default:
		return keyTransport
	}
}

// UserError converts err to its user-facing form. Validation failures get a
// message specific to the violated rule.
func UserError(locale string, err error) domain.UserError {
	kind := domain.KindOf(err)
	key := keyForKind(kind)
	if kind == domain.KindValidation {
		key = validationKey(err)
	}
	return domain.UserError{Kind: kind, Message: printer(locale).Sprintf(key)}
}

func validationKey(err error) string {
	switch {
	case errors.Is(err, domain.ErrTooManyImages):
		return keyTooManyImages
	case errors.Is(err, domain.ErrImageTooLarge):
		return keyImageTooLarge
	case errors.Is(err, domain.ErrInvalidImage):
		return keyInvalidImage
	case errors.Is(err, domain.ErrInvalidOption):
		return keyInvalidOption
	default:
		return keyValidation
	}
}
