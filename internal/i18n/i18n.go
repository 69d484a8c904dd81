// Package i18n localizes the error messages carried in API response
// envelopes. The catalog's own records are never localized; only the
// human-readable message text for each error code is.
package i18n

import (
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"

	"github.com/arrayops/librarian/internal/logger"
)

// Supported languages.
const (
	LangEnUS = "en-US"
	LangZhCN = "zh-CN"
)

var (
	instance *I18n
	once     sync.Once

	translations = map[string]map[string]string{
		LangEnUS: {
			"success":               "success",
			"internal_server_error": "internal server error",
			"invalid_params":        "invalid parameters",
			"not_found":             "resource not found",

			"file_not_found":        "no known file",
			"file_name_invalid":     "illegal file name",
			"file_conflict":         "file record already exists",
			"md5_invalid":           "malformed md5 digest",
			"size_invalid":          "illegal negative size",
			"payload_too_large":     "event payload exceeds size cap",
			"instance_not_found":    "no known file instance",
			"instance_conflict":     "file instance already exists",
			"no_instances":          "no instances of file on this librarian",
			"observation_not_found": "no known observation",

			"store_not_found":      "no known store",
			"store_conflict":       "store already exists",
			"store_probe_failed":   "cannot probe store for file metadata",
			"store_kind_invalid":   "unsupported store kind",
			"store_unavailable":    "store is not available",
			"store_info_malformed": "store returned malformed file metadata",

			"database_query":       "database query failed",
			"database_insert":      "database insert failed",
			"database_transaction": "database transaction failed",

			"unknown_error": "unknown error",
		},
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器内部错误",
			"invalid_params":        "参数错误",
			"not_found":             "资源未找到",

			"file_not_found":        "文件记录不存在",
			"file_name_invalid":     "文件名不合法",
			"file_conflict":         "文件记录已存在",
			"md5_invalid":           "md5摘要格式错误",
			"size_invalid":          "文件大小不能为负",
			"payload_too_large":     "事件载荷超出大小上限",
			"instance_not_found":    "文件实例不存在",
			"instance_conflict":     "文件实例已存在",
			"no_instances":          "该文件在本节点没有实例",
			"observation_not_found": "观测记录不存在",

			"store_not_found":      "存储节点不存在",
			"store_conflict":       "存储节点已存在",
			"store_probe_failed":   "无法从存储节点获取文件元数据",
			"store_kind_invalid":   "不支持的存储节点类型",
			"store_unavailable":    "存储节点不可用",
			"store_info_malformed": "存储节点返回的文件元数据格式错误",

			"database_query":       "数据库查询失败",
			"database_insert":      "数据库插入失败",
			"database_transaction": "数据库事务失败",

			"unknown_error": "未知错误",
		},
	}
)

// I18n resolves message keys to localized text.
type I18n struct {
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance returns the process-wide I18n singleton.
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangEnUS,
		}
		instance.initTranslators()
	})
	return instance
}

func (i *I18n) initTranslators() {
	enUS := en_US.New()
	zhCN := zh.New()
	uni := ut.New(enUS, enUS, zhCN)

	langMappings := map[string]string{
		LangEnUS: "en_US",
		LangZhCN: "zh",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("failed to initialize translator for %s (locale %s)", ourLang, localeLang)
			continue
		}
		i.translators[ourLang] = trans
	}
}

// Translate resolves a message key in the requested language, falling
// back to the default language and finally to the key itself.
func (i *I18n) Translate(key, lang string) string {
	if translation, found := translations[lang][key]; found {
		return translation
	}
	if lang != i.defaultLang {
		if translation, found := translations[i.defaultLang][key]; found {
			return translation
		}
	}
	logger.Warnf("missing translation for %q in %s", key, lang)
	return key
}

// SetDefaultLanguage sets the language used when a request names none.
func (i *I18n) SetDefaultLanguage(lang string) {
	i.defaultLang = lang
}

// GetDefaultLanguage returns the fallback language.
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}

// IsSupportedLanguage reports whether lang has a translator.
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}
