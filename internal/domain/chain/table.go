// Пакет chain — доменные примитивы цепочек приложений.
// Само определение цепочки (JSON на записи Application) для модуля opaque;
// здесь живут только вспомогательные типы, которые цепочка использует
// при потреблении runtime-переменных.
package chain

// Table — табличный компонент цепочки с управляющей схемой.
// Схема задаёт множество распознаваемых имён переменных.
type Table struct {
	scheme map[string]struct{}
}

// NewTable создаёт Table со схемой из списка распознаваемых имён переменных.
func NewTable(scheme []string) *Table {
	set := make(map[string]struct{}, len(scheme))
	for _, name := range scheme {
		set[name] = struct{}{}
	}
	return &Table{scheme: set}
}

// LoadVariables возвращает подмножество input, ограниченное ключами схемы.
// Значения не преобразуются и не валидируются — только членство ключа.
// При nil input возвращает nil.
func (t *Table) LoadVariables(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}

	result := make(map[string]any)
	for name, value := range input {
		if _, ok := t.scheme[name]; ok {
			result[name] = value
		}
	}
	return result
}
