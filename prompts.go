// Fixed prompt templates for the two chains and the agent loop.
package graphrag

import "github.com/tmc/langchaingo/prompts"

// retrievalQAPrompt synthesizes an answer from retrieved documents.
var retrievalQAPrompt = prompts.NewPromptTemplate(
	`Use the following pieces of context to answer the question at the end.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Question: {{.question}}
Helpful Answer:`,
	[]string{"context", "question"},
)

// cypherGenerationPrompt asks the model to translate a question into Cypher
// against a concrete schema.
var cypherGenerationPrompt = prompts.NewPromptTemplate(
	`Task: Generate a Cypher statement to query a graph database.
Instructions:
Use only the provided relationship types and properties in the schema.
Do not use any other relationship types or properties that are not provided.
Schema:
{{.schema}}
Note: Do not include any explanations or apologies in your responses.
Do not respond to any questions that might ask anything else than for you to construct a Cypher statement.
Do not include any text except the generated Cypher statement.

The question is:
{{.question}}`,
	[]string{"schema", "question"},
)

// cypherAnswerPrompt phrases raw query results as natural language.
var cypherAnswerPrompt = prompts.NewPromptTemplate(
	`You are an assistant that helps to form nice and human understandable answers.
The information part contains the provided information that you must use to construct an answer.
The provided information is authoritative, you must never doubt it or try to use your internal knowledge to correct it.
Make the answer sound as a response to the question. Do not mention that you based the result on the given information.
If the provided information is empty, say that you don't know the answer.
Information:
{{.context}}

Question: {{.question}}
Helpful Answer:`,
	[]string{"context", "question"},
)

// agentPrompt is the tool-selection template for the agent loop.
var agentPrompt = prompts.NewPromptTemplate(
	`Answer the following questions as best you can. You have access to the following tools:

{{.tools}}

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{{.tool_names}}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Begin!

Question: {{.question}}
Thought: {{.scratchpad}}`,
	[]string{"tools", "tool_names", "question", "scratchpad"},
)
