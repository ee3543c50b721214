package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	The u32 opcode tags that start every framed ring message,
 *		for each of the three channels.
 *
 *------------------------------------------------------------------*/

// RtOpcode enumerates the server->client messages on RtChannel. The
// client never sends commands back on this ring; it only writes audio
// and MIDI-out into the pool and scratch region.
type RtOpcode uint32

const (
	RtNull RtOpcode = iota
	RtSetAudioPool
	RtSetBufferSize
	RtSetSampleRate
	RtSetOnline
	RtControlEventParameter
	RtControlEventMidiBank
	RtControlEventMidiProgram
	RtControlEventAllSoundOff
	RtControlEventAllNotesOff
	RtMidiEvent
	RtProcess
	RtQuit
)

func (o RtOpcode) String() string {
	switch o {
	case RtNull:
		return "Null"
	case RtSetAudioPool:
		return "SetAudioPool"
	case RtSetBufferSize:
		return "SetBufferSize"
	case RtSetSampleRate:
		return "SetSampleRate"
	case RtSetOnline:
		return "SetOnline"
	case RtControlEventParameter:
		return "ControlEventParameter"
	case RtControlEventMidiBank:
		return "ControlEventMidiBank"
	case RtControlEventMidiProgram:
		return "ControlEventMidiProgram"
	case RtControlEventAllSoundOff:
		return "ControlEventAllSoundOff"
	case RtControlEventAllNotesOff:
		return "ControlEventAllNotesOff"
	case RtMidiEvent:
		return "MidiEvent"
	case RtProcess:
		return "Process"
	case RtQuit:
		return "Quit"
	default:
		return "Unknown"
	}
}

// NonRtClientOpcode enumerates host->child messages on
// NonRtClientChannel.
type NonRtClientOpcode uint32

const (
	NonRtClientNull NonRtClientOpcode = iota
	NonRtClientVersion
	NonRtClientInitialSetup
	NonRtClientActivate
	NonRtClientDeactivate
	NonRtClientSetParameterValue
	NonRtClientSetParameterMidiChannel
	NonRtClientSetParameterMappedControlIndex
	NonRtClientSetParameterMappedRange
	NonRtClientSetProgram
	NonRtClientSetMidiProgram
	NonRtClientSetCustomData
	NonRtClientSetChunkDataFile
	NonRtClientSetOption
	NonRtClientSetOptions
	NonRtClientSetCtrlChannel
	NonRtClientPrepareForSave
	NonRtClientRestoreLV2State
	NonRtClientPing
	NonRtClientPingOnOff
	NonRtClientShowUI
	NonRtClientHideUI
	NonRtClientEmbedUI
	NonRtClientSetWindowTitle
	NonRtClientUiParameterChange
	NonRtClientUiProgramChange
	NonRtClientUiMidiProgramChange
	NonRtClientUiNoteOn
	NonRtClientUiNoteOff
	NonRtClientGetParameterText
	NonRtClientQuit
)

func (o NonRtClientOpcode) String() string {
	names := [...]string{
		"Null", "Version", "InitialSetup", "Activate", "Deactivate",
		"SetParameterValue", "SetParameterMidiChannel", "SetParameterMappedControlIndex",
		"SetParameterMappedRange", "SetProgram", "SetMidiProgram", "SetCustomData",
		"SetChunkDataFile", "SetOption", "SetOptions", "SetCtrlChannel",
		"PrepareForSave", "RestoreLV2State", "Ping", "PingOnOff",
		"ShowUI", "HideUI", "EmbedUI", "SetWindowTitle",
		"UiParameterChange", "UiProgramChange", "UiMidiProgramChange",
		"UiNoteOn", "UiNoteOff", "GetParameterText", "Quit",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}

// NonRtServerOpcode enumerates child->host messages on
// NonRtServerChannel.
type NonRtServerOpcode uint32

const (
	NonRtServerNull NonRtServerOpcode = iota
	NonRtServerVersion
	NonRtServerPluginInfo1
	NonRtServerPluginInfo2
	NonRtServerAudioCount
	NonRtServerMidiCount
	NonRtServerCvCount
	NonRtServerPortName
	NonRtServerParameterCount
	NonRtServerParameterData1
	NonRtServerParameterData2
	NonRtServerParameterRanges
	NonRtServerParameterValue2
	NonRtServerProgramCount
	NonRtServerProgramName
	NonRtServerMidiProgramCount
	NonRtServerMidiProgramData
	NonRtServerSetLatency
	NonRtServerReady
	NonRtServerParameterValue
	NonRtServerDefaultValue
	NonRtServerParameterTouch
	NonRtServerCurrentProgram
	NonRtServerCurrentMidiProgram
	NonRtServerSetParameterText
	NonRtServerSetCustomData
	NonRtServerSetChunkDataFile
	NonRtServerSaved
	NonRtServerUiClosed
	NonRtServerRespEmbedUI
	NonRtServerResizeEmbedUI
	NonRtServerError
	NonRtServerPong
)

func (o NonRtServerOpcode) String() string {
	names := [...]string{
		"Null", "Version", "PluginInfo1", "PluginInfo2", "AudioCount",
		"MidiCount", "CvCount", "PortName", "ParameterCount", "ParameterData1",
		"ParameterData2", "ParameterRanges", "ParameterValue2", "ProgramCount",
		"ProgramName", "MidiProgramCount", "MidiProgramData", "SetLatency",
		"Ready", "ParameterValue", "DefaultValue", "ParameterTouch",
		"CurrentProgram", "CurrentMidiProgram", "SetParameterText",
		"SetCustomData", "SetChunkDataFile", "Saved", "UiClosed",
		"RespEmbedUI", "ResizeEmbedUI", "Error", "Pong",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "Unknown"
}

// PortType tags a PortName message's port kind.
type PortType uint8

const (
	PortAudioIn PortType = iota
	PortAudioOut
	PortCvIn
	PortCvOut
	PortMidiIn
	PortMidiOut
)

// Protocol version constants per spec §6. Feature gates below are
// checked with >=.
const (
	APIVersionCurrent = 10

	APIVersionMappedParameterRanges = 7
	APIVersionWindowTitle           = 8
	APIVersionEmbedUI               = 9
	APIVersionReducedBigValueCutoff = 10
)

// BigValueThreshold returns the custom-data value length above which
// the server writes the value to a temp file instead of inlining it on
// the ring, per the client's negotiated API version.
func BigValueThreshold(apiVersion uint32) int {
	if apiVersion >= APIVersionReducedBigValueCutoff {
		return 4 * 1024
	}
	return 16 * 1024
}
