package web3

// ABI fragments for the deployed contracts, limited to the entry points the
// coordinator uses.

const verifierABIJSON = `[
	{
		"type": "function",
		"name": "verifyProof",
		"stateMutability": "view",
		"inputs": [
			{"name": "_pA", "type": "uint256[2]"},
			{"name": "_pB", "type": "uint256[2][2]"},
			{"name": "_pC", "type": "uint256[2]"},
			{"name": "_pubSignals", "type": "uint256[3]"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

const voterRegistryABIJSON = `[
	{
		"type": "function",
		"name": "registerVoter",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "commitment", "type": "bytes32"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "isVoterRegistered",
		"stateMutability": "view",
		"inputs": [{"name": "commitment", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "isNullifierUsed",
		"stateMutability": "view",
		"inputs": [{"name": "nullifier", "type": "bytes32"}],
		"outputs": [{"name": "", "type": "bool"}]
	}
]`

const electionManagerABIJSON = `[
	{
		"type": "function",
		"name": "createElection",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "title", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "startTime", "type": "uint256"},
			{"name": "endTime", "type": "uint256"},
			{"name": "candidateCount", "type": "uint256"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "startRegistration",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "electionId", "type": "uint256"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "startVoting",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "electionId", "type": "uint256"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "endElection",
		"stateMutability": "nonpayable",
		"inputs": [{"name": "electionId", "type": "uint256"}],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getElectionDetails",
		"stateMutability": "view",
		"inputs": [{"name": "electionId", "type": "uint256"}],
		"outputs": [
			{"name": "title", "type": "string"},
			{"name": "description", "type": "string"},
			{"name": "startTime", "type": "uint256"},
			{"name": "endTime", "type": "uint256"},
			{"name": "candidateCount", "type": "uint256"},
			{"name": "state", "type": "uint8"}
		]
	},
	{
		"type": "function",
		"name": "getVoteCount",
		"stateMutability": "view",
		"inputs": [
			{"name": "electionId", "type": "uint256"},
			{"name": "candidateId", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "event",
		"name": "ElectionCreated",
		"anonymous": false,
		"inputs": [
			{"name": "electionId", "type": "uint256", "indexed": false},
			{"name": "title", "type": "string", "indexed": false},
			{"name": "creator", "type": "address", "indexed": false}
		]
	}
]`

const votingSystemABIJSON = `[
	{
		"type": "function",
		"name": "castVote",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "electionId", "type": "uint256"},
			{"name": "candidateId", "type": "uint256"},
			{"name": "a", "type": "uint256[2]"},
			{"name": "b", "type": "uint256[2][2]"},
			{"name": "c", "type": "uint256[2]"},
			{"name": "publicSignals", "type": "uint256[3]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getResults",
		"stateMutability": "view",
		"inputs": [
			{"name": "electionId", "type": "uint256"},
			{"name": "candidateCount", "type": "uint256"}
		],
		"outputs": [{"name": "", "type": "uint256[]"}]
	}
]`
