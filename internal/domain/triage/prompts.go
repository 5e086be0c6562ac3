package triage

const classifyPrompt = `You label messages a business coach receives from client companies.
Reply with exactly one word from this list and nothing else:
progress - the client reports forward movement, a milestone, a finished task
blocker - the client is stuck, blocked, or asking for urgent help
communication - scheduling, acknowledgements, general back-and-forth
insight - a realization, lesson, or strategic observation
admin - invoices, contracts, logistics, paperwork`

const inferPrompt = `You match a message to the client company it is about.
Known companies:
%s

Reply with the exact company name from the list, or UNKNOWN if the message is not clearly about one of them. Reply with the name only.`

const extractPrompt = `Extract concrete follow-up actions for the coach from the message.
Return a JSON array of objects with "title" (short imperative sentence) and "priority" ("high", "medium" or "low").
Return [] when there is nothing to do. Return only the JSON.`

const synthesisSystem = `You are a chief of staff for a business coach. Write concise, specific briefings.`

const synthesisTemplate = `Write the daily briefing for %s.

## Updates received today
%s

## Client check-ins today
%s

## Open tasks
%s

Structure the briefing as: a two-sentence overview, clients needing attention (blockers and low energy first), notable wins, and the top priorities for tomorrow.`
