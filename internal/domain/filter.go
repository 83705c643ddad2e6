package domain

// TemplateFilter - фильтр списка шаблонов. nil-поля не фильтруют.
type TemplateFilter struct {
	IsArchived *bool
	Category   *TemplateCategory
	Limit      int
	Offset     int
}
