// services/designer.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trivia-quiz-system/models"
)

const maxResearchDocs = 5

const draftSystemPrompt = `You write multiple-choice trivia questions. ` +
	`Reply with a JSON array only, no prose. Each element must have the keys ` +
	`"question", "answer", "wrong_answers" (three strings) and "clarification" ` +
	`(one sentence explaining the answer). Every question must be answerable ` +
	`from the provided document alone.`

const reviewSystemPrompt = `You grade trivia questions against reference ` +
	`documents. For each numbered question reply with one line of the form ` +
	`"<number>: CORRECT" when the stated answer is right according to the ` +
	`documents, or "<number>: INCORRECT" otherwise. No other output.`

// questionDraft is the wire shape the model is asked to produce.
type questionDraft struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	WrongAnswers  []string `json:"wrong_answers"`
	Clarification string   `json:"clarification"`
}

// Designer turns a game's keywords into validated questions in three steps:
// research documents, draft questions per document, review the drafts. Only
// reviewed drafts become stored questions.
type Designer struct {
	llm  llms.Model
	wiki *WikipediaClient
}

func NewDesigner(llm llms.Model, wiki *WikipediaClient) *Designer {
	return &Designer{llm: llm, wiki: wiki}
}

// DesignGame produces exactly game.QuestionsLimit questions or fails, so a
// READY game never comes up short.
func (d *Designer) DesignGame(ctx context.Context, game *models.Game) ([]*models.Question, error) {
	topic := slug.Make(strings.Join(game.Keywords, " "))

	log.Printf("[%s] researching for keywords: %v", topic, game.Keywords)
	docs, err := d.wiki.Search(ctx, strings.Join(game.Keywords, " "), maxResearchDocs)
	if err != nil {
		return nil, fmt.Errorf("research failed: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("research yielded no documents for keywords %v", game.Keywords)
	}
	log.Printf("[%s] research yielded %d document(s)", topic, len(docs))

	drafts, err := d.draft(ctx, game, docs)
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] drafting yielded %d question(s)", topic, len(drafts))

	finals, err := d.review(ctx, game, drafts, docs)
	if err != nil {
		return nil, err
	}
	log.Printf("[%s] review kept %d question(s)", topic, len(finals))

	if len(finals) > game.QuestionsLimit {
		rand.Shuffle(len(finals), func(i, j int) {
			finals[i], finals[j] = finals[j], finals[i]
		})
		finals = finals[:game.QuestionsLimit]
	}

	questions := make([]*models.Question, 0, len(finals))
	for i, draft := range finals {
		question, err := models.CreateQuestion(i+1, draft.Question, draft.Answer, draft.WrongAnswers, draft.Clarification)
		if err != nil {
			log.Printf("[%s] dropping invalid draft %q: %v", topic, draft.Question, err)
			continue
		}
		questions = append(questions, question)
	}

	if len(questions) < game.QuestionsLimit {
		return nil, fmt.Errorf("designed only %d of %d questions for game %s", len(questions), game.QuestionsLimit, game.ID)
	}
	return questions, nil
}

func (d *Designer) draft(ctx context.Context, game *models.Game, docs []string) ([]questionDraft, error) {
	titler := cases.Title(language.English)
	topics := make([]string, len(game.Keywords))
	for i, kw := range game.Keywords {
		topics[i] = titler.String(kw)
	}

	var drafts []questionDraft
	for _, doc := range docs {
		prompt := fmt.Sprintf("Topic: %s\n\nDocument:\n%s", strings.Join(topics, ", "), doc)

		resp, err := d.llm.GenerateContent(ctx,
			[]llms.MessageContent{
				llms.TextParts(llms.ChatMessageTypeSystem, draftSystemPrompt),
				llms.TextParts(llms.ChatMessageTypeHuman, prompt),
			},
			llms.WithTemperature(0.0),
			llms.WithCandidateCount(1),
		)
		if err != nil {
			return nil, fmt.Errorf("drafting failed: %w", err)
		}

		docDrafts, err := parseDrafts(resp.Choices[0].Content)
		if err != nil {
			// One malformed completion should not sink the whole game.
			log.Printf("skipping unparsable draft batch: %v", err)
			continue
		}
		drafts = append(drafts, docDrafts...)
	}

	if len(drafts) == 0 {
		return nil, fmt.Errorf("drafting yielded no questions")
	}
	return drafts, nil
}

// review drops trivial drafts, then asks the model to grade the remainder
// against the research documents and keeps only CORRECT-graded ones.
func (d *Designer) review(ctx context.Context, game *models.Game, drafts []questionDraft, docs []string) ([]questionDraft, error) {
	var candidates []questionDraft
	for _, draft := range drafts {
		if isTrivial(game.Keywords, draft) {
			continue
		}
		candidates = append(candidates, draft)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("review left no non-trivial questions")
	}

	var sb strings.Builder
	sb.WriteString("Documents:\n\n")
	for _, doc := range docs {
		sb.WriteString(doc)
		sb.WriteString("\n\n---\n\n")
	}
	sb.WriteString("Questions:\n")
	for i, draft := range candidates {
		fmt.Fprintf(&sb, "%d. Q: %s A: %s\n", i+1, draft.Question, draft.Answer)
	}

	resp, err := d.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, reviewSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, sb.String()),
		},
		llms.WithTemperature(0.0),
		llms.WithCandidateCount(1),
	)
	if err != nil {
		return nil, fmt.Errorf("review failed: %w", err)
	}

	grades := parseGrades(resp.Choices[0].Content, len(candidates))
	var finals []questionDraft
	for i, ok := range grades {
		if ok {
			finals = append(finals, candidates[i])
		}
	}
	return finals, nil
}

// isTrivial flags drafts whose correct answer names a game keyword while no
// wrong answer does: the keyword gives the answer away before reading the
// question.
func isTrivial(keywords []string, draft questionDraft) bool {
	if !containsKeyword(draft.Answer, keywords) {
		return false
	}
	for _, wrong := range draft.WrongAnswers {
		if containsKeyword(wrong, keywords) {
			return false
		}
	}
	return true
}

func containsKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// parseDrafts pulls the JSON array out of a completion, tolerating code
// fences and prose around it.
func parseDrafts(text string) ([]questionDraft, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("completion carries no JSON array")
	}

	var drafts []questionDraft
	if err := json.Unmarshal([]byte(text[start:end+1]), &drafts); err != nil {
		return nil, fmt.Errorf("failed to decode drafts: %w", err)
	}
	return drafts, nil
}

// parseGrades reads "<number>: CORRECT|INCORRECT" lines into a result
// vector; unmentioned or malformed numbers stay failed.
func parseGrades(text string, n int) []bool {
	grades := make([]bool, n)
	for _, line := range strings.Split(text, "\n") {
		num, verdict, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(num), "#")))
		if err != nil || i < 1 || i > n {
			continue
		}
		grades[i-1] = strings.EqualFold(strings.TrimSuffix(strings.TrimSpace(verdict), "."), "CORRECT")
	}
	return grades
}
