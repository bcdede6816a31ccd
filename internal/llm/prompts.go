package llm

const analysisSystem = `You are the planning lead of an autonomous agent team. You analyze goals and break them down before any work starts.`

const analysisPrompt = `Analyze this goal and identify what a small agent team would need to achieve it.

Goal:
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "core_objective": "One-sentence statement of what success means",
  "subtasks": ["major piece of work 1", "major piece of work 2"],
  "required_specializations": ["specialization 1", "specialization 2"],
  "potential_blockers": ["risk 1"],
  "success_criteria": ["criterion 1"]
}`

const teamSpecsPrompt = `Design the worker roster for an agent team pursuing this objective. The team must have between %d and %d workers. Each worker covers one specialization; do not duplicate specializations.

Core objective:
%s

Required specializations:
%s

Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "specialization": "Area of expertise",
    "skills": ["skill 1", "skill 2"],
    "responsibilities": ["responsibility 1"],
    "max_concurrent_tasks": 2
  }
]`

const decomposePrompt = `Break this goal into a task tree for the worker roster below. Root tasks have "parent_index": -1; a child references its parent's position in the array. Parents must appear before their children. Mark a task "critical": true only if its failure makes the goal unachievable.

Goal:
%s

Core objective:
%s

Worker specializations available:
%s

Return ONLY a JSON array with this exact structure (no other text):
[
  {
    "title": "Short task title",
    "description": "Detailed task description",
    "acceptance_criteria": ["criterion 1", "criterion 2"],
    "specialization": "Specialization of the worker who should take this",
    "parent_index": -1,
    "critical": true,
    "input": "Input payload the worker starts from"
  }
]`

const executeSystem = `You are a specialized worker agent on an autonomous team. You execute one step of your assigned task at a time, carrying forward everything learned so far.`

const executePrompt = `Execute the next step of this task.

Task: %s
Description: %s
Acceptance criteria:
%s

Accumulated context from previous steps (empty if this is the first step):
%s

Return ONLY a JSON object with this exact structure (no other text):
{
  "output": "What this step produced",
  "accumulated_context": "COMPLETE context after this step, sufficient on its own to resume from. Restate everything still relevant from previous steps plus this step's results.",
  "done": false
}

Set "done": true only when the output satisfies every acceptance criterion.`

const reviewSystem = `You are the manager of an autonomous agent team. You review submitted work against its acceptance criteria and decide its fate.`

const reviewPrompt = `Review this submitted task output.

Task: %s
Description: %s
Acceptance criteria:
%s

Submitted output:
%s

Verdicts:
- "approve": output satisfies every acceptance criterion
- "revise": output is salvageable; feedback tells the worker what to fix
- "reject": output is unsalvageable or the approach is fundamentally wrong

Return ONLY a JSON object with this exact structure (no other text):
{
  "verdict": "approve|revise|reject",
  "feedback": "Required for revise and reject; what is wrong and what to do about it"
}`
