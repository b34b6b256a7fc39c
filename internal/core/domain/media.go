package domain

// MediaKind описывает тип медиафайла
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
	MediaImage MediaKind = "image"
)

// ParseMediaKind разбирает вид из данных кнопки; допустимы только video и audio
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(s) {
	case MediaVideo, MediaAudio:
		return MediaKind(s), true
	default:
		return "", false
	}
}

// SearchResult - каноническая ссылка, найденная по запросу
type SearchResult struct {
	VideoID string
	URL     string
}

// DownloadedFile - временный локальный файл, живущий не дольше одного запроса
type DownloadedFile struct {
	Path string
	Kind MediaKind
	// Dir - каталог, принадлежащий только этому запросу; удаляется вместе с файлом
	Dir string
}

// Scope возвращает путь, который нужно удалить после запроса
func (f DownloadedFile) Scope() string {
	if f.Dir != "" {
		return f.Dir
	}
	return f.Path
}

// MediaDescriptor строится только для файла, прошедшего проверку
type MediaDescriptor struct {
	Path     string
	Kind     MediaKind
	Caption  string
	Duration int
}
