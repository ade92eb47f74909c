package engine

import (
	"fmt"
	"strings"
)

// System prompts for the four engine operations. The wording is not part of
// the engine's contract, but the answer formats are: the classifier tests
// for the token "COMPLEX" and the decomposer scans for "SUB-QUESTION <n>:"
// lines, so the prompts pin those formats down.

const classifySystemPrompt = `You are an AI assistant that assesses question complexity.

Your job is to determine if a question is SIMPLE or COMPLEX:
- SIMPLE: Can be answered directly in 1-2 paragraphs with straightforward reasoning
- COMPLEX: Requires breaking down into multiple sub-questions to answer thoroughly

Consider a question COMPLEX if:
- It asks about multiple things at once
- It requires analysis from multiple angles
- It involves step-by-step procedures
- It needs comprehensive explanation of a system

Consider a question SIMPLE if:
- It asks a single, focused question
- It can be answered with a direct explanation
- It doesn't require decomposition

Output ONLY the word "SIMPLE" or "COMPLEX" - nothing else.`

const decomposeSystemPrompt = `You are an AI assistant that breaks down complex questions into simpler sub-questions.

Your job is to decompose a complex question into 2-5 simpler sub-questions that:
- Are easier to answer than the original question
- Cover all aspects of the original question
- Are as independent as possible
- Progress logically toward answering the original question

Output format (STRICT):
SUB-QUESTION 1: [first sub-question]
SUB-QUESTION 2: [second sub-question]
SUB-QUESTION 3: [third sub-question]
...

Do not include any other text. Each sub-question should be on its own line.`

const answerSystemPrompt = `You are a senior software engineer providing detailed technical analysis.

Your responses must follow this structure:

ANSWER:
[Your clear, concise answer to the question]

ASSUMPTIONS:
- [Assumption 1]
- [Assumption 2]
...
(or "None" if no assumptions)

Be thorough but concise. If you make any assumptions, state them explicitly.`

const composeSystemPrompt = `You are an AI assistant that synthesizes multiple sub-answers into a coherent final answer.

Your job is to:
- Integrate insights from all sub-answers
- Address the original question comprehensively
- Present a well-structured, coherent response
- Remove redundancy while preserving important details

Output format:
FINAL ANSWER:
[Your integrated, comprehensive answer]

Do not just concatenate the sub-answers. Synthesize them into a cohesive response.`

func classifyUserPrompt(question string) string {
	return fmt.Sprintf("Question: %s\n\nIs this SIMPLE or COMPLEX?", question)
}

func decomposeUserPrompt(question string, context []string) string {
	return fmt.Sprintf(
		"Question: %s\n\nContext:\n%s\n\nBreak this complex question into 2-5 simpler sub-questions.",
		question, contextBlock(context))
}

func answerUserPrompt(question string, context []string) string {
	return fmt.Sprintf(
		"Question: %s\n\nContext:\n%s\n\nPlease provide a direct answer to this question.",
		question, contextBlock(context))
}

func composeUserPrompt(question string, pairs []AnswerPair) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original Question: %s\n\nSub-answers to integrate:\n", question)
	for i, pair := range pairs {
		fmt.Fprintf(&sb, "\nSub-question %d: %s\nAnswer: %s\n", i+1, pair.Question, pair.Answer)
	}
	sb.WriteString("\nSynthesize these sub-answers into a coherent final answer to the original question.")
	return sb.String()
}

func contextBlock(context []string) string {
	if len(context) == 0 {
		return "No additional context available."
	}
	return strings.Join(context, "\n")
}
