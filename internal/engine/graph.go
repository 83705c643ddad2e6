package engine

import (
	"fmt"
	"sort"

	"github.com/shaiso/Questionary/internal/domain"
)

// Edge - ребро графа зависимостей.
//
// From - вопрос-цель (на который отвечают), To - зависимое поле.
// Значение ответа "течёт" по ребру от From к To.
type Edge struct {
	From      string
	To        string
	Condition domain.FieldCondition
}

// Node - поле шаблона в графе.
type Node struct {
	// QuestionID - ID вопроса поля.
	QuestionID string

	// TopicID - раздел поля.
	TopicID int64

	// Enabled - раздел поля включён.
	Enabled bool

	// Problem - структурная ошибка поля (цикл, неизвестная цель и т.п.).
	// Поле с ошибкой всегда неактивно.
	Problem error
}

// Diagnostic - запись о поле, которое не удалось вычислить.
type Diagnostic struct {
	QuestionID string
	Err        error
}

// Graph - граф зависимостей полей одного шаблона.
//
// Рёбра хранятся плоским списком и индексируются с обеих сторон:
// у поля не больше одной зависимости (byTo), но зависимых может быть
// сколько угодно (byFrom). Обходы итеративные, с множеством посещённых,
// поэтому повреждённый граф с циклом не приводит к зацикливанию.
type Graph struct {
	// Nodes - все поля графа (questionID → Node).
	Nodes map[string]*Node

	// Order - топологический порядок полей, не входящих в циклы
	// и не зависящих от них.
	Order []string

	edges    []Edge
	byFrom   map[string][]int
	byTo     map[string]int
	position map[string]int // порядок отображения в шаблоне
	orderIdx map[string]int
}

// BuildGraph строит граф зависимостей для шаблона.
//
// Построение не падает на ошибочных данных: неизвестная цель,
// зависимость от себя и циклы записываются в Node.Problem.
// Строгая проверка - ValidateTemplate.
func BuildGraph(t *domain.Template) *Graph {
	g := &Graph{
		Nodes:    make(map[string]*Node),
		byFrom:   make(map[string][]int),
		byTo:     make(map[string]int),
		position: make(map[string]int),
		orderIdx: make(map[string]int),
	}

	fields := make([]*domain.QuestionTemplateRelation, 0)

	// Первый проход: создаём узлы
	for i := range t.Topics {
		topic := &t.Topics[i]
		for j := range topic.Fields {
			f := &topic.Fields[j]
			id := f.Question.ID
			if _, exists := g.Nodes[id]; exists {
				g.Nodes[id].Problem = NewValidationError(id, "question",
					"question appears more than once in template", ErrDuplicateQuestion)
				continue
			}
			g.Nodes[id] = &Node{
				QuestionID: id,
				TopicID:    topic.ID,
				Enabled:    topic.IsEnabled,
			}
			g.position[id] = len(fields)
			fields = append(fields, f)
		}
	}

	// Второй проход: рёбра
	for _, f := range fields {
		if f.Dependency == nil {
			continue
		}
		g.link(f.Question.ID, f.Dependency, t)
	}

	g.topologicalSort(fields)

	return g
}

// link добавляет ребро зависимости поля id.
func (g *Graph) link(id string, dep *domain.FieldDependency, t *domain.Template) {
	node := g.Nodes[id]
	target := dep.DependencyID

	if target == id {
		node.Problem = NewValidationError(id, "dependency",
			"field depends on itself", ErrSelfDependency)
		return
	}
	if _, exists := g.Nodes[target]; !exists {
		node.Problem = NewValidationError(id, "dependency",
			fmt.Sprintf("depends on unknown question: %s", target), ErrMissingDependency)
		return
	}

	targetField, _ := t.Field(target)
	if !targetField.Question.DataType.IsAnswerable() {
		node.Problem = NewValidationError(id, "dependency",
			fmt.Sprintf("depends on %s which has no answer", target), ErrNotAnswerableTarget)
	} else if dep.Condition.Params.Kind != targetField.Question.DataType {
		node.Problem = NewValidationError(id, "dependency.condition.params",
			fmt.Sprintf("params are %s, dependency %s is %s",
				dep.Condition.Params.Kind, target, targetField.Question.DataType), ErrParamsMismatch)
	}

	g.edges = append(g.edges, Edge{From: target, To: id, Condition: dep.Condition})
	idx := len(g.edges) - 1
	g.byTo[id] = idx
	g.byFrom[target] = append(g.byFrom[target], idx)
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Поля, оставшиеся необработанными и лежащие на цикле, получают Problem.
func (g *Graph) topologicalSort(fields []*domain.QuestionTemplateRelation) {
	inDegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		if _, ok := g.byTo[id]; ok {
			inDegree[id] = 1
		}
	}

	// Очередь полей без зависимостей, в порядке шаблона
	queue := make([]string, 0)
	for _, f := range fields {
		if inDegree[f.Question.ID] == 0 {
			queue = append(queue, f.Question.ID)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		g.orderIdx[id] = len(order)
		order = append(order, id)

		for _, ei := range g.byFrom[id] {
			dependent := g.edges[ei].To
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	g.Order = order

	if len(order) == len(g.Nodes) {
		return
	}

	// Не все поля обработаны - есть цикл
	for _, f := range fields {
		id := f.Question.ID
		if _, sorted := g.orderIdx[id]; sorted {
			continue
		}
		if g.onCycle(id) && g.Nodes[id].Problem == nil {
			g.Nodes[id].Problem = NewValidationError(id, "dependency",
				"dependency chain returns to this field", ErrCyclicDependency)
		}
	}
}

// onCycle проверяет, возвращается ли цепочка зависимостей к id.
func (g *Graph) onCycle(id string) bool {
	visited := make(map[string]bool)
	cur := id
	for {
		ei, ok := g.byTo[cur]
		if !ok {
			return false
		}
		cur = g.edges[ei].From
		if cur == id {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
	}
}

// Dependency возвращает ребро зависимости поля (nil, если зависимости нет).
func (g *Graph) Dependency(id string) *Edge {
	ei, ok := g.byTo[id]
	if !ok {
		return nil
	}
	return &g.edges[ei]
}

// Edges возвращает копию списка рёбер.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)
	return edges
}

// Size возвращает количество полей в графе.
func (g *Graph) Size() int {
	return len(g.Nodes)
}

// Problems возвращает структурные ошибки полей в порядке шаблона.
func (g *Graph) Problems() []error {
	ids := make([]string, 0)
	for id, node := range g.Nodes {
		if node.Problem != nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return g.position[ids[i]] < g.position[ids[j]] })

	problems := make([]error, len(ids))
	for i, id := range ids {
		problems[i] = g.Nodes[id].Problem
	}
	return problems
}

// WouldCreateCycle проверяет, создаст ли зависимость owner → target цикл.
//
// Цикл возникает, если цепочка зависимостей от target возвращается
// к owner (или если owner == target).
func (g *Graph) WouldCreateCycle(owner, target string) bool {
	if owner == target {
		return true
	}
	visited := make(map[string]bool)
	cur := target
	for {
		if cur == owner {
			return true
		}
		if visited[cur] {
			// Цикл в уже повреждённом графе, owner в него не входит
			return false
		}
		visited[cur] = true

		ei, ok := g.byTo[cur]
		if !ok {
			return false
		}
		cur = g.edges[ei].From
	}
}

// DependentsOf возвращает все поля, транзитивно зависящие от id,
// в топологическом порядке.
func (g *Graph) DependentsOf(id string) []string {
	visited := map[string]bool{id: true}
	result := make([]string, 0)

	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ei := range g.byFrom[cur] {
			dependent := g.edges[ei].To
			if visited[dependent] {
				continue
			}
			visited[dependent] = true
			result = append(result, dependent)
			queue = append(queue, dependent)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return g.rank(result[i]) < g.rank(result[j])
	})
	return result
}

// unsorted возвращает поля вне топологического порядка в порядке шаблона.
func (g *Graph) unsorted() []string {
	ids := make([]string, 0)
	for id := range g.Nodes {
		if _, sorted := g.orderIdx[id]; !sorted {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return g.position[ids[i]] < g.position[ids[j]] })
	return ids
}

// rank - позиция поля для сортировки: сначала топологический порядок,
// затем поля вне его (циклы) в порядке шаблона.
func (g *Graph) rank(id string) int {
	if idx, ok := g.orderIdx[id]; ok {
		return idx
	}
	return len(g.Order) + g.position[id]
}

// ActiveQuestions вычисляет множество активных полей для набора ответов.
//
// Поле активно, если у него нет зависимости, либо вопрос-цель сам
// активен, на него есть ответ и условие выполнено. Поля выключенных
// разделов и поля со структурными ошибками неактивны.
// Возвращает map questionID → активность для всех полей шаблона.
func (g *Graph) ActiveQuestions(conds *Conditions, answers map[string]domain.Value) (map[string]bool, []Diagnostic) {
	active := make(map[string]bool, len(g.Nodes))
	diags := make([]Diagnostic, 0)

	for id := range g.Nodes {
		active[id] = false
	}
	for _, id := range g.Order {
		ok, diag := g.evaluate(id, conds, active, answers)
		active[id] = ok
		if diag != nil {
			diags = append(diags, *diag)
		}
	}

	// Поля вне топологического порядка: на цикле или ниже него.
	// Они остаются неактивными; диагностика - только для полей на цикле.
	for _, id := range g.unsorted() {
		if problem := g.Nodes[id].Problem; problem != nil {
			diags = append(diags, Diagnostic{QuestionID: id, Err: problem})
		}
	}

	return active, diags
}

// Refresh пересчитывает активность только транзитивно зависимых от
// changedID полей после изменения ответа на него.
// active изменяется на месте. Возвращает поля, чья активность изменилась.
func (g *Graph) Refresh(conds *Conditions, active map[string]bool, answers map[string]domain.Value, changedID string) ([]string, []Diagnostic) {
	flipped := make([]string, 0)
	diags := make([]Diagnostic, 0)

	for _, id := range g.DependentsOf(changedID) {
		if _, sorted := g.orderIdx[id]; !sorted {
			active[id] = false
			continue
		}
		ok, diag := g.evaluate(id, conds, active, answers)
		if diag != nil {
			diags = append(diags, *diag)
		}
		if active[id] != ok {
			flipped = append(flipped, id)
		}
		active[id] = ok
	}

	return flipped, diags
}

// evaluate вычисляет активность одного поля.
// Зависимости поля должны быть уже вычислены (топологический порядок).
func (g *Graph) evaluate(id string, conds *Conditions, active map[string]bool, answers map[string]domain.Value) (bool, *Diagnostic) {
	node := g.Nodes[id]
	if node.Problem != nil {
		return false, &Diagnostic{QuestionID: id, Err: node.Problem}
	}
	if !node.Enabled {
		return false, nil
	}

	edge := g.Dependency(id)
	if edge == nil {
		return true, nil
	}
	if !active[edge.From] {
		return false, nil
	}

	var answer *domain.Value
	if v, ok := answers[edge.From]; ok {
		answer = &v
	}

	ok, err := conds.IsSatisfied(answer, edge.Condition.Operator, edge.Condition.Params)
	if err != nil {
		return false, &Diagnostic{QuestionID: id, Err: err}
	}
	return ok, nil
}
