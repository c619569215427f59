package i18n

import (
	"strings"

	"golang.org/x/text/language"
)

var translations = map[string]string{
	"invalid request":                                "Некоректний запит",
	"internal server error":                          "Внутрішня помилка сервера",
	"not found":                                      "Не знайдено",
	"rate limiter error":                             "Помилка обмеження запитів",
	"rate limit exceeded":                            "Забагато запитів, спробуйте пізніше",
	"Not authenticated":                              "Не автентифіковано",
	"Could not validate credentials":                 "Не вдалося перевірити облікові дані",
	"Incorrect email or password":                    "Неправильна електронна пошта або пароль",
	"Email already registered":                       "Електронна пошта вже зареєстрована",
	"Username already taken":                         "Ім'я користувача вже зайняте",
	"Username or email already registered":           "Ім'я користувача або електронна пошта вже зареєстровані",
	"Password is required":                           "Пароль обов'язковий",
	"User not found":                                 "Користувача не знайдено",
	"Successfully logged out":                        "Ви успішно вийшли",
	"Cannot create chat with yourself":               "Неможливо створити чат із самим собою",
	"You are not a member of this chat":              "Ви не є учасником цього чату",
	"Chat deactivated":                               "Чат деактивовано",
	"Message not found":                              "Повідомлення не знайдено",
	"Message deleted":                                "Повідомлення видалено",
	"Message content cannot be empty":                "Текст повідомлення не може бути порожнім",
	"Unsupported message type":                       "Непідтримуваний тип повідомлення",
	"You can only edit your own messages":            "Ви можете редагувати лише власні повідомлення",
	"You can only delete your own messages":          "Ви можете видаляти лише власні повідомлення",
	"You can only attach files to your own messages": "Ви можете додавати файли лише до власних повідомлень",
	"skip must be zero or greater":                   "Параметр skip не може бути від'ємним",
	"limit must be at least 1":                       "Параметр limit має бути не меншим за 1",
	"File not found":                                 "Файл не знайдено",
	"File type not allowed":                          "Тип файлу не дозволено",
	"file is required":                               "Файл обов'язковий",
	"invalid chat id":                                "Некоректний ідентифікатор чату",
	"invalid message id":                             "Некоректний ідентифікатор повідомлення",
	"invalid file id":                                "Некоректний ідентифікатор файлу",
	"invalid pagination parameters":                  "Некоректні параметри пагінації",
}

// prefixTranslations cover messages that end with a parameter; the text
// after the prefix is kept as is.
var prefixTranslations = []struct {
	prefix, translated string
}{
	{"File too large. Maximum size: ", "Файл завеликий. Максимальний розмір: "},
	{"invalid field ", "Некоректне поле "},
	{"missing field ", "Відсутнє обов'язкове поле "},
	{"failed to parse request: ", "Некоректний запит: "},
}

var matcher = language.NewMatcher([]language.Tag{
	language.English,
	language.Ukrainian,
})

// Translate returns the Ukrainian text for message, or message itself when
// no translation exists.
func Translate(message string) string {
	if translated, ok := translations[message]; ok {
		return translated
	}
	for _, p := range prefixTranslations {
		if rest, ok := strings.CutPrefix(message, p.prefix); ok {
			return p.translated + rest
		}
	}
	return message
}

// PrefersUkrainian reports whether an Accept-Language header ranks
// Ukrainian above English.
func PrefersUkrainian(acceptLanguage string) bool {
	if acceptLanguage == "" {
		return false
	}
	_, idx := language.MatchStrings(matcher, acceptLanguage)
	return idx == 1
}

// Localize translates message when acceptLanguage asks for Ukrainian.
func Localize(message, acceptLanguage string) string {
	if PrefersUkrainian(acceptLanguage) {
		return Translate(message)
	}
	return message
}
