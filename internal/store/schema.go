package store

// Schema v1 - warehouse tables.
// Composite keys are declared here rather than inferred from source files.
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS DimMusicalWork (
  WorkID TEXT PRIMARY KEY,
  WorkType TEXT,
  Genre TEXT,
  WorkTitle TEXT,
  WorkDescription TEXT
);

CREATE TABLE IF NOT EXISTS DimPerformer (
  PerformerID TEXT PRIMARY KEY,
  PerformerName TEXT NOT NULL UNIQUE,
  InstrumentOrRole TEXT
);

CREATE TABLE IF NOT EXISTS DimMovement (
  MovementID TEXT PRIMARY KEY,
  WorkID TEXT,
  MovementNumber INTEGER,
  MovementTitle TEXT,
  MovementDescription TEXT
);

CREATE TABLE IF NOT EXISTS DimAlbum (
  AlbumID TEXT PRIMARY KEY,
  AlbumTitle TEXT,
  PerformerID TEXT,
  SpotifyURL TEXT,
  SpotifyTitle TEXT,
  RecordingLabel TEXT,
  SpotifyReleaseDate INTEGER,
  SpotifyGenre TEXT
);

CREATE TABLE IF NOT EXISTS DimRecording (
  RecordingID TEXT PRIMARY KEY,
  AlbumID TEXT,
  MovementID TEXT,
  WorkID TEXT,
  PerformerID TEXT,
  SpotifyURL TEXT,
  SpotifyTitle TEXT
);

CREATE TABLE IF NOT EXISTS DimJourney (
  JourneyID TEXT PRIMARY KEY,
  JourneyName TEXT,
  JourneyDescription TEXT,
  CreatorName TEXT,
  Granularity TEXT CHECK (Granularity IN ('Track', 'Album'))
);

-- One step references a recording or an album, never both
CREATE TABLE IF NOT EXISTS FactJourneyStep (
  StepID TEXT PRIMARY KEY,
  JourneyID TEXT NOT NULL,
  RecordingID TEXT,
  AlbumID TEXT,
  StepOrder INTEGER NOT NULL,
  UNIQUE (JourneyID, StepOrder),
  CHECK (RecordingID IS NULL OR AlbumID IS NULL)
);

CREATE TABLE IF NOT EXISTS BridgeAlbumMovement (
  AlbumID TEXT NOT NULL,
  MovementID TEXT NOT NULL,
  RecordingID TEXT NOT NULL,
  TrackNumber INTEGER,
  PRIMARY KEY (AlbumID, MovementID, RecordingID)
);

-- Cross-reference from a journey to its playlist on a remote service
CREATE TABLE IF NOT EXISTS DimPlaylist (
  JourneyID TEXT NOT NULL,
  ServiceID TEXT NOT NULL,
  PlaylistID TEXT NOT NULL,
  PlaylistTitle TEXT,
  LastUpdatedUTC TEXT NOT NULL,
  PRIMARY KEY (JourneyID, ServiceID)
);
`

// Schema v2 - data-quality and narrative columns, lookup indexes
const schemaV2 = `
ALTER TABLE DimAlbum ADD COLUMN TitleMatch INTEGER;
ALTER TABLE DimRecording ADD COLUMN TitleMatch INTEGER;
ALTER TABLE DimJourney ADD COLUMN Theme TEXT;
ALTER TABLE FactJourneyStep ADD COLUMN ActTitle TEXT;
ALTER TABLE FactJourneyStep ADD COLUMN CurationNotes TEXT;

CREATE INDEX IF NOT EXISTS idx_album_title_performer ON DimAlbum(AlbumTitle, PerformerID);
CREATE INDEX IF NOT EXISTS idx_album_url ON DimAlbum(SpotifyURL);
CREATE INDEX IF NOT EXISTS idx_recording_url ON DimRecording(SpotifyURL);
CREATE INDEX IF NOT EXISTS idx_recording_album ON DimRecording(AlbumID);
CREATE INDEX IF NOT EXISTS idx_bridge_recording ON BridgeAlbumMovement(RecordingID);
`
