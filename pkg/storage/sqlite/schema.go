package sqlite

// schema is applied on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL DEFAULT '',
	modality TEXT NOT NULL,
	timestamp TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS text_memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	memory_key TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	keywords TEXT NOT NULL DEFAULT '[]',
	importance_score REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS image_memories (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id INTEGER NOT NULL REFERENCES conversations(id),
	image_path TEXT NOT NULL,
	image_hash TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	file_size INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS semantic_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	memory_id_1 INTEGER NOT NULL,
	memory_id_2 INTEGER NOT NULL,
	modality_1 TEXT NOT NULL,
	modality_2 TEXT NOT NULL,
	similarity_score REAL NOT NULL DEFAULT 0,
	link_type TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_metadata (
	user_id TEXT PRIMARY KEY,
	first_interaction TEXT NOT NULL,
	last_activity TEXT NOT NULL,
	total_conversations INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);
CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);
CREATE INDEX IF NOT EXISTS idx_text_memories_conversation ON text_memories(conversation_id);
CREATE INDEX IF NOT EXISTS idx_text_memories_hash ON text_memories(content_hash);
CREATE INDEX IF NOT EXISTS idx_text_memories_key ON text_memories(memory_key);
CREATE INDEX IF NOT EXISTS idx_image_memories_conversation ON image_memories(conversation_id);
CREATE INDEX IF NOT EXISTS idx_image_memories_hash ON image_memories(image_hash);
`
